package main

import (
	"context"
	"fmt"
	"mime"
	"os"
	"path/filepath"
	"runtime"

	"github.com/hubenschmidt/go-dupimg/core"
	"github.com/hubenschmidt/go-dupimg/match"
	"golang.org/x/sync/errgroup"
)

// readAttachment loads a file the way a chat client would send it: files
// with a known extension become documents carrying that MIME type, the
// rest are sent as photos.
func readAttachment(path string) (match.Attachment, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return match.Attachment{}, err
	}
	if mt := mime.TypeByExtension(filepath.Ext(path)); mt != "" {
		return match.Document(mt, data), nil
	}
	return match.Photo(data), nil
}

type hashResult struct {
	Path        string
	Fingerprint core.Fingerprint
	Err         error
}

// hashFiles fingerprints paths concurrently. Per-file failures are reported
// in the result; only cancellation aborts the batch.
func hashFiles(ctx context.Context, ex match.Extractor, paths []string) ([]hashResult, error) {
	results := make([]hashResult, len(paths))

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(runtime.GOMAXPROCS(0))
	for i, path := range paths {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			results[i].Path = path
			data, err := os.ReadFile(path)
			if err != nil {
				results[i].Err = err
				return nil
			}
			results[i].Fingerprint, results[i].Err = ex.Extract(data)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}

// resolveOperand accepts a 16 hex digit fingerprint or an image path.
func resolveOperand(ex match.Extractor, s string) (core.Fingerprint, error) {
	if fp, err := core.ParseFingerprint(s); err == nil {
		if _, statErr := os.Stat(s); statErr != nil {
			return fp, nil
		}
	}
	data, err := os.ReadFile(s)
	if err != nil {
		return 0, err
	}
	fp, err := ex.Extract(data)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", s, err)
	}
	return fp, nil
}
