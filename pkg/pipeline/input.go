package pipeline

import (
	"context"
	"fmt"
	"io"

	"github.com/flopezo/genevalidator/pkg/fasta"
	"github.com/flopezo/genevalidator/pkg/seq"
	"github.com/flopezo/genevalidator/pkg/storage"
)

// Input is an indexed query file whose sequence type has been checked
type Input struct {
	Path  string
	Index *fasta.Index

	// Type is the declared type, or the detected one when none was declared
	Type     seq.Type
	Detected seq.Type

	file storage.File
}

// Load opens the query file, builds its record index, and cross-checks the
// declared sequence type against the content. Nothing is validated when any
// of these steps fails. Zstd compressed files are decoded transparently.
func Load(ctx context.Context, store storage.Storage, path string, declared seq.Type) (*Input, error) {
	ok, err := store.Exists(ctx, path)
	if err != nil {
		return nil, fmt.Errorf("failed to stat %s: %w", path, err)
	}
	if !ok {
		return nil, &MissingInputError{Path: path}
	}

	f, err := storage.OpenRandomAccess(ctx, store, path)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", path, err)
	}

	in, err := load(path, f, declared)
	if err != nil {
		f.Close()
		return nil, err
	}
	return in, nil
}

func load(path string, f storage.File, declared seq.Type) (*Input, error) {
	idx, err := fasta.NewIndex(f, f.Size())
	if err != nil {
		return nil, fmt.Errorf("failed to index %s: %w", path, err)
	}

	content, err := io.ReadAll(io.NewSectionReader(f, 0, f.Size()))
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}

	in := &Input{Path: path, Index: idx, Type: declared, file: f}
	if declared == seq.Unknown {
		in.Detected, err = seq.ClassifyFile(content)
		if err == nil && in.Detected == seq.Unknown {
			err = fmt.Errorf("cannot detect the sequence type of %s, declare it explicitly", path)
		}
		in.Type = in.Detected
	} else {
		in.Detected, err = seq.CheckDeclared(declared, content)
	}
	if err != nil {
		return nil, fmt.Errorf("sequence type check of %s failed: %w", path, err)
	}
	return in, nil
}

// Close releases the underlying file
func (in *Input) Close() error {
	if in.file == nil {
		return nil
	}
	return in.file.Close()
}
