package pnnx

import (
	"archive/zip"
	"io"
	"os"
	"sort"

	"github.com/pkg/errors"
)

// ErrMissingWeight is returned when the weight archive lacks an entry.
var ErrMissingWeight = errors.New("pnnx: weight entry not found")

// Load parses the model at paramPath with weights from the zip archive at
// binPath.
func Load(paramPath, binPath string) (*Graph, error) {
	param, err := os.Open(paramPath)
	if err != nil {
		return nil, errors.Wrap(err, "pnnx: open param")
	}
	defer param.Close()

	archive, err := zip.OpenReader(binPath)
	if err != nil {
		return nil, errors.Wrap(err, "pnnx: open bin")
	}
	defer archive.Close()

	g, err := Parse(param, ZipWeights(&archive.Reader))
	if err != nil {
		return nil, errors.Wrapf(err, "load %s", paramPath)
	}
	return g, nil
}

// ZipWeights returns a WeightSource reading entries of a zip archive.
func ZipWeights(r *zip.Reader) WeightSource {
	entries := make(map[string]*zip.File, len(r.File))
	for _, f := range r.File {
		entries[f.Name] = f
	}
	return func(key string) ([]byte, error) {
		f, ok := entries[key]
		if !ok {
			return nil, errors.Wrap(ErrMissingWeight, key)
		}
		rc, err := f.Open()
		if err != nil {
			return nil, errors.Wrapf(err, "open entry %s", key)
		}
		defer rc.Close()
		data, err := io.ReadAll(rc)
		if err != nil {
			return nil, errors.Wrapf(err, "read entry %s", key)
		}
		return data, nil
	}
}

// FileLoader loads models from the file system.
type FileLoader struct{}

// Load implements the graph builder's loader contract.
func (FileLoader) Load(paramPath, binPath string) (*Graph, error) {
	return Load(paramPath, binPath)
}

// WriteWeights writes entries as an uncompressed weight archive, in key
// order.
func WriteWeights(w io.Writer, entries map[string][]byte) error {
	keys := make([]string, 0, len(entries))
	for k := range entries {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	zw := zip.NewWriter(w)
	for _, k := range keys {
		fw, err := zw.CreateHeader(&zip.FileHeader{Name: k, Method: zip.Store})
		if err != nil {
			return errors.Wrapf(err, "pnnx: create entry %s", k)
		}
		if _, err := fw.Write(entries[k]); err != nil {
			return errors.Wrapf(err, "pnnx: write entry %s", k)
		}
	}
	return errors.Wrap(zw.Close(), "pnnx: close archive")
}
