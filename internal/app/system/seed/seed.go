// Package seed loads the standards catalogue from YAML and upserts it into
// the record store at startup.
//
// File format:
//
//	standards:
//	  - number: 1
//	    title: Written safety plan
//	    agencies: ["64f1c0e2a1b2c3d4e5f60718", "64f1c0e2a1b2c3d4e5f60719"]
//
// Seeding refreshes title, description and assigned agencies. Status and
// progress belong to derivation and are only initialised on insert.
package seed

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"

	"github.com/dalemusser/compliancehub/internal/domain/errs"
	"github.com/dalemusser/compliancehub/internal/domain/models"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"
)

// File is the decoded seed document.
type File struct {
	Standards []StandardSeed `yaml:"standards"`
}

// StandardSeed is one catalogue entry.
type StandardSeed struct {
	Number      int      `yaml:"number"`
	Title       string   `yaml:"title"`
	Description string   `yaml:"description"`
	Agencies    []string `yaml:"agencies"`
}

// Upserter writes a standard by number. It reports whether it inserted.
type Upserter interface {
	Upsert(ctx context.Context, st models.Standard) (bool, error)
}

// Result counts what Apply did.
type Result struct {
	Inserted int
	Updated  int
}

// Parse decodes and validates seed YAML.
func Parse(data []byte) (File, error) {
	if len(bytes.TrimSpace(data)) == 0 {
		return File{}, errs.Invalid("seed: payload is empty")
	}
	var f File
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&f); err != nil && err != io.EOF {
		return File{}, fmt.Errorf("seed: decode: %w", err)
	}

	seen := make(map[int]bool, len(f.Standards))
	for i, s := range f.Standards {
		if s.Number <= 0 {
			return File{}, errs.Invalid("seed: standards[%d]: number must be positive, got %d", i, s.Number)
		}
		if seen[s.Number] {
			return File{}, errs.Invalid("seed: standards[%d]: duplicate number %d", i, s.Number)
		}
		seen[s.Number] = true
		for _, a := range s.Agencies {
			if _, err := primitive.ObjectIDFromHex(a); err != nil {
				return File{}, errs.Invalid("seed: standard %d: bad agency id %q", s.Number, a)
			}
		}
	}
	return f, nil
}

// Load reads and parses a seed file.
func Load(path string) (File, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return File{}, fmt.Errorf("seed: read %s: %w", path, err)
	}
	f, err := Parse(data)
	if err != nil {
		return File{}, fmt.Errorf("seed: %s: %w", path, err)
	}
	return f, nil
}

// Apply upserts every standard in f. It stops at the first storage error.
func Apply(ctx context.Context, store Upserter, f File, logger *zap.Logger) (Result, error) {
	var res Result
	for _, s := range f.Standards {
		agencies := make([]primitive.ObjectID, 0, len(s.Agencies))
		seen := make(map[primitive.ObjectID]bool, len(s.Agencies))
		for _, a := range s.Agencies {
			id, _ := primitive.ObjectIDFromHex(a) // validated by Parse
			if seen[id] {
				continue
			}
			seen[id] = true
			agencies = append(agencies, id)
		}

		inserted, err := store.Upsert(ctx, models.Standard{
			Number:           s.Number,
			Title:            s.Title,
			Description:      s.Description,
			AssignedAgencies: agencies,
		})
		if err != nil {
			return res, errs.Storage(fmt.Sprintf("seed standard %d", s.Number), err)
		}
		if inserted {
			res.Inserted++
		} else {
			res.Updated++
		}
	}
	logger.Info("standards seeded",
		zap.Int("inserted", res.Inserted),
		zap.Int("updated", res.Updated))
	return res, nil
}
