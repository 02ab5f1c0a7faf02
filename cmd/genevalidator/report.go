package main

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/flopezo/genevalidator/pkg/pipeline"
	"github.com/flopezo/genevalidator/pkg/storage"
)

type queryDoc struct {
	Index       int         `yaml:"index"`
	Definition  string      `yaml:"definition"`
	Length      int         `yaml:"length"`
	Hits        int         `yaml:"hits"`
	Validations []reportDoc `yaml:"validations"`
}

type reportDoc struct {
	Rule    string `yaml:"rule"`
	Status  string `yaml:"status"`
	Message string `yaml:"message,omitempty"`
	Reason  string `yaml:"reason,omitempty"`
}

// reportSink writes one YAML document per query. S3 destinations are
// buffered and uploaded on Close.
type reportSink struct {
	enc *yaml.Encoder

	file *os.File

	ctx    context.Context
	upload *bytes.Buffer
	store  storage.Storage
	dest   string
}

func newReportSink(ctx context.Context, dest string, stdout io.Writer) (*reportSink, error) {
	s := &reportSink{ctx: ctx, dest: dest}

	var w io.Writer
	switch {
	case dest == "" || dest == "-":
		w = stdout
	case storage.IsS3URI(dest):
		store, err := storage.NewStorage(ctx, dest)
		if err != nil {
			return nil, err
		}
		s.store = store
		s.upload = new(bytes.Buffer)
		w = s.upload
	default:
		f, err := os.Create(dest)
		if err != nil {
			return nil, fmt.Errorf("failed to create %s: %w", dest, err)
		}
		s.file = f
		w = f
	}

	s.enc = yaml.NewEncoder(w)
	s.enc.SetIndent(2)
	return s, nil
}

func (s *reportSink) Report(q pipeline.Query) error {
	doc := queryDoc{
		Index:       q.Index,
		Definition:  q.Predicted.Definition,
		Length:      q.Predicted.Length,
		Hits:        len(q.Hits),
		Validations: make([]reportDoc, len(q.Reports)),
	}
	for i, r := range q.Reports {
		doc.Validations[i] = reportDoc{
			Rule:    r.Rule,
			Status:  r.Status.String(),
			Message: r.Message,
			Reason:  r.Reason,
		}
	}
	return s.enc.Encode(doc)
}

func (s *reportSink) Close() error {
	err := s.enc.Close()
	if s.file != nil {
		if cerr := s.file.Close(); err == nil {
			err = cerr
		}
	}
	if s.upload != nil && err == nil {
		err = s.store.WriteFile(s.ctx, s.dest, s.upload.Bytes())
	}
	return err
}
