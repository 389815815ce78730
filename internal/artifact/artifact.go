// Package artifact fetches model and vocabulary artifacts from S3 and
// deserializes them once per process.
//
// Lambda keeps the process alive between warm invocations, so the loaded
// model and tokenizer live in a Loader held in a package-global by the
// function's main. There is no eviction: the cache is exactly "whatever this
// execution environment already paid for".
package artifact

import (
	"context"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/mckdm/transformer-serverless/internal/model"
	"github.com/mckdm/transformer-serverless/internal/tokenizer"
)

// ObjectGetter is the slice of the S3 API the store needs. *s3.Client
// satisfies it; tests substitute a fake.
type ObjectGetter interface {
	GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
}

// Store downloads artifacts from a single S3 bucket.
type Store struct {
	client ObjectGetter
	bucket string
}

// NewStore creates a Store reading from bucket through client.
func NewStore(client ObjectGetter, bucket string) *Store {
	return &Store{client: client, bucket: bucket}
}

// Fetch downloads s3://bucket/key to dest.
func (s *Store) Fetch(ctx context.Context, key, dest string) error {
	out, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return fmt.Errorf("artifact: failed to get s3://%s/%s: %w", s.bucket, key, err)
	}
	defer out.Body.Close()

	f, err := os.Create(dest)
	if err != nil {
		return fmt.Errorf("artifact: failed to create %s: %w", dest, err)
	}
	defer f.Close()

	if _, err := io.Copy(f, out.Body); err != nil {
		return fmt.Errorf("artifact: failed to write %s: %w", dest, err)
	}
	return nil
}

// Loader downloads and deserializes the model and tokenizer exactly once per
// process. All invocations after the first reuse the loaded artifacts (warm
// start).
type Loader struct {
	store    *Store
	modelKey string
	vocabKey string

	once     sync.Once
	model    *model.Model
	tok      *tokenizer.Tokenizer
	loadTime time.Duration
	err      error
}

// NewLoader creates a Loader for the given artifact keys.
func NewLoader(store *Store, modelKey, vocabKey string) *Loader {
	return &Loader{store: store, modelKey: modelKey, vocabKey: vocabKey}
}

// Load returns the model and tokenizer, downloading and deserializing them
// on the first call (cold start). The returned duration is the cold-start
// load time; it is zero on warm calls.
//
// A failed cold start is cached: the execution environment is broken and
// every request in it will see the same error until the platform recycles it.
func (l *Loader) Load(ctx context.Context) (*model.Model, *tokenizer.Tokenizer, time.Duration, error) {
	coldStart := false

	l.once.Do(func() {
		coldStart = true
		start := time.Now()

		dir := os.TempDir()
		modelPath := filepath.Join(dir, "model.bin")
		vocabPath := filepath.Join(dir, "vocab.json")

		log.Printf("cold start: downloading artifacts from bucket %q", l.store.bucket)

		if l.err = l.store.Fetch(ctx, l.modelKey, modelPath); l.err != nil {
			return
		}
		if l.err = l.store.Fetch(ctx, l.vocabKey, vocabPath); l.err != nil {
			return
		}

		l.model, l.err = model.Load(modelPath)
		if l.err != nil {
			return
		}
		l.tok, l.err = tokenizer.Load(vocabPath)
		if l.err != nil {
			return
		}

		l.loadTime = time.Since(start)
		// The log line feeds the ModelLoads CloudWatch metric filter; keep
		// the phrasing stable.
		log.Printf("Model loaded successfully in %.2fs (vocab entries=%d)",
			l.loadTime.Seconds(), l.tok.Len())
	})

	if l.err != nil {
		return nil, nil, 0, l.err
	}
	if coldStart {
		return l.model, l.tok, l.loadTime, nil
	}
	return l.model, l.tok, 0, nil
}
