package blast

import (
	"encoding/xml"
	"errors"
	"io"
	"strconv"
	"strings"

	"github.com/flopezo/genevalidator/pkg/seq"
)

type xmlIteration struct {
	QueryDef string   `xml:"Iteration_query-def"`
	QueryLen int      `xml:"Iteration_query-len"`
	Hits     []xmlHit `xml:"Iteration_hits>Hit"`
}

type xmlHit struct {
	ID        string   `xml:"Hit_id"`
	Def       string   `xml:"Hit_def"`
	Accession string   `xml:"Hit_accession"`
	Len       int      `xml:"Hit_len"`
	Hsps      []xmlHsp `xml:"Hit_hsps>Hsp"`
}

type xmlHsp struct {
	EValue     string `xml:"Hsp_evalue"`
	QueryFrom  int    `xml:"Hsp_query-from"`
	QueryTo    int    `xml:"Hsp_query-to"`
	HitFrom    int    `xml:"Hsp_hit-from"`
	HitTo      int    `xml:"Hsp_hit-to"`
	QueryFrame int    `xml:"Hsp_query-frame"`
	AlignLen   int    `xml:"Hsp_align-len"`
	QSeq       string `xml:"Hsp_qseq"`
	HSeq       string `xml:"Hsp_hseq"`
}

// xmlParser walks <Iteration> elements of a BLAST XML report. A report cut
// off by an interrupted search ends at its last complete iteration.
type xmlParser struct {
	dec       *xml.Decoder
	typ       seq.Type
	cursor    int
	done      bool
	truncated bool
}

func newXMLParser(r io.Reader, opts Options) *xmlParser {
	return &xmlParser{dec: xml.NewDecoder(r), typ: opts.Type}
}

func (p *xmlParser) Format() Format { return XML }

func (p *xmlParser) Cursor() int { return p.cursor }

// nextIteration advances the decoder to the next <Iteration> start tag
func (p *xmlParser) nextIteration() (*xml.StartElement, error) {
	if p.done {
		return nil, io.EOF
	}
	for {
		tok, err := p.dec.Token()
		if errors.Is(err, io.EOF) {
			p.done = true
			return nil, io.EOF
		}
		if p.cut(err) {
			return nil, io.EOF
		}
		if err != nil {
			return nil, &MalformedResultError{Record: p.cursor + 1, Reason: "invalid XML", Err: err}
		}
		if se, ok := tok.(xml.StartElement); ok && se.Name.Local == "Iteration" {
			return &se, nil
		}
	}
}

func (p *xmlParser) Next() (*QueryRecord, error) {
	start, err := p.nextIteration()
	if err != nil {
		return nil, err
	}
	var it xmlIteration
	if err := p.dec.DecodeElement(&it, start); err != nil {
		if p.cut(err) {
			return nil, io.EOF
		}
		return nil, &MalformedResultError{Record: p.cursor + 1, Reason: "invalid iteration", Err: err}
	}
	p.cursor++

	rec, err := p.convert(&it)
	if err != nil {
		return nil, &MalformedResultError{Record: p.cursor, Reason: "invalid HSP", Err: err}
	}
	return rec, nil
}

func (p *xmlParser) Skip(n int) (int, error) {
	skipped := 0
	for skipped < n {
		if _, err := p.nextIteration(); err != nil {
			if errors.Is(err, io.EOF) {
				return skipped, nil
			}
			return skipped, err
		}
		if err := p.dec.Skip(); err != nil {
			if p.cut(err) {
				return skipped, nil
			}
			return skipped, &MalformedResultError{Record: p.cursor + 1, Reason: "invalid iteration", Err: err}
		}
		p.cursor++
		skipped++
	}
	return skipped, nil
}

// Truncated reports whether the report ended inside an element
func (p *xmlParser) Truncated() bool { return p.truncated }

// cut reports whether err is the decoder hitting end of input inside an
// open element, and ends the stream if so
func (p *xmlParser) cut(err error) bool {
	var se *xml.SyntaxError
	if errors.Is(err, io.ErrUnexpectedEOF) ||
		(errors.As(err, &se) && strings.HasPrefix(se.Msg, "unexpected EOF")) {
		p.done = true
		p.truncated = true
		return true
	}
	return false
}

func (p *xmlParser) convert(it *xmlIteration) (*QueryRecord, error) {
	rec := &QueryRecord{
		Predicted: &seq.Sequence{
			Length:     native(p.typ, it.QueryLen),
			Definition: strings.TrimSpace(it.QueryDef),
			Type:       p.typ,
		},
		Hits: make([]*seq.Sequence, 0, len(it.Hits)),
	}

	for _, h := range it.Hits {
		hit := &seq.Sequence{
			Length:     h.Len,
			Definition: strings.TrimSpace(h.Def),
			Type:       p.typ,
			Identifier: strings.TrimSpace(h.ID),
			Accession:  strings.TrimSpace(h.Accession),
			Hsps:       make([]seq.Hsp, 0, len(h.Hsps)),
		}
		for _, x := range h.Hsps {
			evalue, err := parseEValue(x.EValue)
			if err != nil {
				return nil, err
			}
			hsp := seq.Hsp{
				EValue:          evalue,
				HitFrom:         x.HitFrom,
				HitTo:           x.HitTo,
				QueryFrom:       native(p.typ, x.QueryFrom),
				QueryTo:         native(p.typ, x.QueryTo),
				ReadingFrame:    x.QueryFrame,
				HitAlignment:    strings.TrimSpace(x.HSeq),
				QueryAlignment:  strings.TrimSpace(x.QSeq),
				AlignmentLength: x.AlignLen,
			}
			if err := checkAlignment(hsp); err != nil {
				return nil, err
			}
			hit.Hsps = append(hit.Hsps, hsp)
		}
		rec.Hits = append(rec.Hits, hit)
	}
	return rec, nil
}

// parseEValue accepts BLAST's e-value spellings, including "e-180" without a mantissa
func parseEValue(s string) (float64, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, nil
	}
	if s[0] == 'e' || s[0] == 'E' {
		s = "1" + s
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, errors.New("invalid e-value " + strconv.Quote(s))
	}
	return v, nil
}
