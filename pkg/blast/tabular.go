package blast

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/flopezo/genevalidator/pkg/seq"
)

// DefaultColumns is the -outfmt 6 column layout assumed when none is given
var DefaultColumns = []string{
	"qseqid", "sseqid", "sacc", "slen", "qstart", "qend",
	"sstart", "send", "length", "qframe", "pident", "evalue",
}

// fieldNames maps the "# Fields:" labels of -outfmt 7 to column specifiers
var fieldNames = map[string]string{
	"query id":           "qseqid",
	"query acc.":         "qacc",
	"query acc.ver":      "qaccver",
	"query length":       "qlen",
	"subject id":         "sseqid",
	"subject ids":        "sallseqid",
	"subject acc.":       "sacc",
	"subject acc.ver":    "saccver",
	"subject length":     "slen",
	"subject title":      "stitle",
	"subject titles":     "salltitles",
	"q. start":           "qstart",
	"q. end":             "qend",
	"s. start":           "sstart",
	"s. end":             "send",
	"query seq":          "qseq",
	"subject seq":        "sseq",
	"evalue":             "evalue",
	"bit score":          "bitscore",
	"score":              "score",
	"alignment length":   "length",
	"% identity":         "pident",
	"mismatches":         "mismatch",
	"gap opens":          "gapopen",
	"query/sbjct frames": "frames",
	"query frame":        "qframe",
	"sbjct frame":        "sframe",
}

// maxLine bounds a single tabular line, which can hold full alignment strings
const maxLine = 16 * 1024 * 1024

// queryIDColumns and subjectIDColumns are the specifiers accepted as record
// keys, in order of preference
var (
	queryIDColumns   = []string{"qseqid", "qaccver", "qacc"}
	subjectIDColumns = []string{"sseqid", "saccver", "sacc", "sallseqid"}
)

// columns is a resolved column layout
type columns struct {
	idx      map[string]int
	query    int
	subject  int
	maxIndex int
}

func newColumns(layout []string) (columns, error) {
	if len(layout) == 0 {
		layout = DefaultColumns
	}
	c := columns{idx: make(map[string]int, len(layout))}
	for i, name := range layout {
		name = strings.ToLower(strings.TrimSpace(name))
		if _, dup := c.idx[name]; !dup {
			c.idx[name] = i
		}
	}
	var ok bool
	if c.query, ok = c.first(queryIDColumns); !ok {
		return columns{}, fmt.Errorf("column layout %v has no query id (one of %v)", layout, queryIDColumns)
	}
	if c.subject, ok = c.first(subjectIDColumns); !ok {
		return columns{}, fmt.Errorf("column layout %v has no subject id (one of %v)", layout, subjectIDColumns)
	}
	c.maxIndex = len(layout)
	return c, nil
}

func (c columns) first(names []string) (int, bool) {
	for _, name := range names {
		if i, ok := c.idx[name]; ok {
			return i, true
		}
	}
	return 0, false
}

// parseFieldsComment reads the column layout from a "# Fields:" line body
func parseFieldsComment(s string) (columns, error) {
	labels := strings.Split(s, ",")
	layout := make([]string, len(labels))
	for i, l := range labels {
		l = strings.ToLower(strings.TrimSpace(l))
		if short, ok := fieldNames[l]; ok {
			layout[i] = short
		} else {
			layout[i] = l
		}
	}
	return newColumns(layout)
}

func (c columns) width() int {
	return c.maxIndex
}

func (c columns) has(name string) bool {
	_, ok := c.idx[name]
	return ok
}

func (c columns) str(f []string, name string) string {
	if i, ok := c.idx[name]; ok {
		return f[i]
	}
	return ""
}

func (c columns) num(f []string, name string) (int, error) {
	i, ok := c.idx[name]
	if !ok || f[i] == "" || f[i] == "N/A" {
		return 0, nil
	}
	n, err := strconv.Atoi(f[i])
	if err != nil {
		return 0, fmt.Errorf("column %s: %q is not an integer", name, f[i])
	}
	return n, nil
}

// row is one HSP line
type row struct {
	query, subject, accession, title string
	subjectLen, queryLen             int
	hsp                              seq.Hsp
}

func splitRow(line string) []string {
	f := strings.Split(line, "\t")
	if len(f) == 1 {
		f = strings.Fields(line)
	}
	for i := range f {
		f[i] = strings.TrimSpace(f[i])
	}
	return f
}

func (c columns) parseRow(line string, typ seq.Type) (row, error) {
	f := splitRow(line)
	if len(f) < c.width() {
		return row{}, fmt.Errorf("%d columns, expected %d", len(f), c.width())
	}

	r := row{
		query:     f[c.query],
		subject:   f[c.subject],
		accession: c.str(f, "sacc"),
		title:     c.str(f, "stitle"),
	}
	if r.accession == "" {
		r.accession = c.str(f, "saccver")
	}
	if r.title == "" {
		r.title = c.str(f, "salltitles")
	}

	var err error
	if r.subjectLen, err = c.num(f, "slen"); err != nil {
		return row{}, err
	}
	if r.queryLen, err = c.num(f, "qlen"); err != nil {
		return row{}, err
	}

	h := &r.hsp
	ints := []struct {
		name string
		dst  *int
	}{
		{"qstart", &h.QueryFrom},
		{"qend", &h.QueryTo},
		{"sstart", &h.HitFrom},
		{"send", &h.HitTo},
		{"length", &h.AlignmentLength},
		{"qframe", &h.ReadingFrame},
	}
	for _, x := range ints {
		if *x.dst, err = c.num(f, x.name); err != nil {
			return row{}, err
		}
	}
	if !c.has("qframe") {
		if frames := c.str(f, "frames"); frames != "" {
			q, _, _ := strings.Cut(frames, "/")
			if h.ReadingFrame, err = strconv.Atoi(q); err != nil {
				return row{}, fmt.Errorf("column frames: %q is not a frame pair", frames)
			}
		}
	}
	if h.EValue, err = parseEValue(c.str(f, "evalue")); err != nil {
		return row{}, err
	}
	h.QueryAlignment = c.str(f, "qseq")
	h.HitAlignment = c.str(f, "sseq")

	r.queryLen = native(typ, r.queryLen)
	h.QueryFrom = native(typ, h.QueryFrom)
	h.QueryTo = native(typ, h.QueryTo)

	if err := checkAlignment(*h); err != nil {
		return row{}, err
	}
	return r, nil
}

// tabularParser groups HSP lines into query records. "# Query:" comments
// delimit records when present, so queries with zero hits keep their place;
// otherwise a change of query id starts a new record.
type tabularParser struct {
	sc        *bufio.Scanner
	typ       seq.Type
	cols      columns
	line      int
	cursor    int
	commented bool

	pending []pendingLine
	done    bool
}

// pendingLine is a scanned line handed back to the parser
type pendingLine struct {
	text string
	n    int
}

func newTabularParser(r io.Reader, opts Options) (*tabularParser, error) {
	cols, err := newColumns(opts.Columns)
	if err != nil {
		return nil, &MalformedResultError{Reason: "invalid tabular layout", Err: err}
	}
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), maxLine)
	return &tabularParser{sc: sc, typ: opts.Type, cols: cols}, nil
}

// probe checks that the first data line parses with the configured layout,
// so unrelated input is rejected before any record is yielded. Scanned lines
// are handed back to the parser. A leading run of comments longer than
// peekSize is accepted without a data line.
func (p *tabularParser) probe() error {
	var (
		cols       = p.cols
		sawComment bool
		size       int
		seen       []pendingLine
	)
	defer func() { p.pending = append(seen, p.pending...) }()

	for {
		line, ok, err := p.readLine()
		if err != nil {
			return err
		}
		if !ok {
			break
		}
		seen = append(seen, pendingLine{text: line, n: p.line})
		size += len(line) + 1

		trimmed := strings.TrimSpace(line)
		switch {
		case trimmed == "":
			continue
		case strings.HasPrefix(trimmed, "#"):
			sawComment = true
			if body, ok := strings.CutPrefix(trimmed, "# Fields:"); ok {
				c, err := parseFieldsComment(body)
				if err != nil {
					return &MalformedResultError{Line: p.line, Reason: "invalid fields comment", Err: err}
				}
				cols = c
			}
			if size >= peekSize {
				return nil
			}
			continue
		}
		if _, err := cols.parseRow(trimmed, p.typ); err != nil {
			return &MalformedResultError{Line: p.line, Reason: "not BLAST XML or tabular output", Err: err}
		}
		return nil
	}
	if !sawComment {
		return &MalformedResultError{Reason: "no BLAST records found"}
	}
	return nil
}

func (p *tabularParser) Format() Format { return Tabular }

func (p *tabularParser) Cursor() int { return p.cursor }

func (p *tabularParser) readLine() (string, bool, error) {
	if len(p.pending) > 0 {
		l := p.pending[0]
		p.pending = p.pending[1:]
		p.line = l.n
		return l.text, true, nil
	}
	if p.done {
		return "", false, nil
	}
	if !p.sc.Scan() {
		p.done = true
		if err := p.sc.Err(); err != nil {
			return "", false, &MalformedResultError{Line: p.line + 1, Reason: "read failed", Err: err}
		}
		return "", false, nil
	}
	p.line++
	return p.sc.Text(), true, nil
}

// unread hands back the line last returned by readLine
func (p *tabularParser) unread(line string) {
	p.pending = append([]pendingLine{{text: line, n: p.line}}, p.pending...)
}

func (p *tabularParser) Next() (*QueryRecord, error) {
	return p.read(true)
}

func (p *tabularParser) Skip(n int) (int, error) {
	skipped := 0
	for skipped < n {
		if _, err := p.read(false); err != nil {
			if err == io.EOF {
				return skipped, nil
			}
			return skipped, err
		}
		skipped++
	}
	return skipped, nil
}

// read consumes one record. Hits are only assembled when build is set.
func (p *tabularParser) read(build bool) (*QueryRecord, error) {
	var (
		started bool
		queryID string
		rec     *QueryRecord
		byID    map[string]*seq.Sequence
	)
	begin := func(def string) {
		started = true
		if build {
			rec = &QueryRecord{Predicted: &seq.Sequence{Definition: def, Type: p.typ}}
			byID = make(map[string]*seq.Sequence)
		}
	}

	for {
		line, ok, err := p.readLine()
		if err != nil {
			return nil, err
		}
		if !ok {
			break
		}
		trimmed := strings.TrimSpace(line)
		if trimmed == "" {
			continue
		}

		if strings.HasPrefix(trimmed, "#") {
			if def, ok := strings.CutPrefix(trimmed, "# Query:"); ok {
				if started {
					p.unread(line)
					break
				}
				p.commented = true
				begin(strings.TrimSpace(def))
				continue
			}
			if body, ok := strings.CutPrefix(trimmed, "# Fields:"); ok {
				cols, err := parseFieldsComment(body)
				if err != nil {
					return nil, &MalformedResultError{Record: p.cursor + 1, Line: p.line, Reason: "invalid fields comment", Err: err}
				}
				p.cols = cols
			}
			continue
		}

		if !build && p.commented {
			continue
		}

		var r row
		if build {
			if r, err = p.cols.parseRow(trimmed, p.typ); err != nil {
				return nil, &MalformedResultError{Record: p.cursor + 1, Line: p.line, Reason: "invalid HSP line", Err: err}
			}
		} else {
			f := splitRow(trimmed)
			if len(f) < p.cols.width() {
				return nil, &MalformedResultError{Record: p.cursor + 1, Line: p.line, Reason: "invalid HSP line",
					Err: fmt.Errorf("%d columns, expected %d", len(f), p.cols.width())}
			}
			r.query = f[p.cols.query]
		}

		if !p.commented {
			if started && r.query != queryID {
				p.unread(line)
				break
			}
			if !started {
				begin(r.query)
			}
			queryID = r.query
		}
		if build {
			p.add(rec, byID, r)
		}
	}

	if !started {
		return nil, io.EOF
	}
	p.cursor++
	return rec, nil
}

func (p *tabularParser) add(rec *QueryRecord, byID map[string]*seq.Sequence, r row) {
	if rec.Predicted.Length == 0 {
		rec.Predicted.Length = r.queryLen
	}
	hit, ok := byID[r.subject]
	if !ok {
		hit = &seq.Sequence{
			Length:     r.subjectLen,
			Definition: r.title,
			Type:       p.typ,
			Identifier: r.subject,
			Accession:  r.accession,
		}
		byID[r.subject] = hit
		rec.Hits = append(rec.Hits, hit)
	}
	hit.Hsps = append(hit.Hsps, r.hsp)
}
