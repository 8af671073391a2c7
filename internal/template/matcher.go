package template

import (
	"context"
	"errors"
	"log/slog"
	"math"

	"github.com/manekies/document-converter-app/internal/common"
	"github.com/manekies/document-converter-app/internal/imaging"
)

// DefaultThreshold is the exclusive upper bound on the Hamming distance of a match.
const DefaultThreshold = 5

// Infinite is the distance between fingerprints of different lengths.
const Infinite = math.MaxInt

// Store is the read side of template persistence.
type Store interface {
	ListFingerprints(ctx context.Context) ([]Fingerprint, error)
	GetTemplate(ctx context.Context, id string) (*Template, error)
}

// HashFunc computes the fingerprint of an encoded image.
type HashFunc func(image []byte) (string, error)

type Matcher struct {
	store     Store
	hash      HashFunc
	threshold int
	logger    *slog.Logger
}

type Option func(*Matcher)

func WithThreshold(n int) Option {
	return func(m *Matcher) {
		if n > 0 {
			m.threshold = n
		}
	}
}

func WithHashFunc(fn HashFunc) Option {
	return func(m *Matcher) {
		if fn != nil {
			m.hash = fn
		}
	}
}

func NewMatcher(store Store, logger *slog.Logger, opts ...Option) *Matcher {
	if logger == nil {
		logger = slog.Default()
	}
	m := &Matcher{
		store:     store,
		hash:      imaging.FingerprintBytes,
		threshold: DefaultThreshold,
		logger:    logger,
	}
	for _, o := range opts {
		o(m)
	}
	return m
}

// FindMatchingTemplate returns the closest stored template, or nil when none is within
// the threshold. Hashing and storage failures are logged and reported as no match.
func (m *Matcher) FindMatchingTemplate(ctx context.Context, image []byte) *Template {
	t, err := m.Match(ctx, image)
	if err != nil {
		if !errors.Is(err, common.ErrNotMatched) {
			m.logger.Warn("template.match.failed", "error", err)
		}
		return nil
	}
	return t
}

// Match is FindMatchingTemplate with the reason for a miss attached. Every error
// wraps common.ErrNotMatched.
func (m *Matcher) Match(ctx context.Context, image []byte) (*Template, error) {
	if m.store == nil {
		return nil, common.NewAppError("NOT_MATCHED", "no template store", common.ErrNotMatched)
	}
	hash, err := m.hash(image)
	if err != nil {
		return nil, common.NewAppError("NOT_MATCHED", "hash image", errors.Join(common.ErrNotMatched, err))
	}
	return m.MatchHash(ctx, hash)
}

// MatchHash looks up a precomputed fingerprint.
func (m *Matcher) MatchHash(ctx context.Context, hash string) (*Template, error) {
	fps, err := m.store.ListFingerprints(ctx)
	if err != nil {
		return nil, common.NewAppError("NOT_MATCHED", "list fingerprints", errors.Join(common.ErrNotMatched, err))
	}
	id, dist, ok := Best(hash, fps, m.threshold)
	if !ok {
		return nil, common.NewAppError("NOT_MATCHED", "no fingerprint within threshold", common.ErrNotMatched)
	}
	t, err := m.store.GetTemplate(ctx, id)
	if err != nil {
		return nil, common.NewAppError("NOT_MATCHED", "fetch template "+id, errors.Join(common.ErrNotMatched, err))
	}
	if t == nil {
		return nil, common.NewAppError("NOT_MATCHED", "template "+id+" vanished", common.ErrNotMatched)
	}
	m.logger.Info("template.match.ok", "template_id", id, "name", t.Name, "distance", dist)
	return t, nil
}

// Best returns the fingerprint closest to hash. Only a strictly smaller distance replaces
// the current best, so ties keep the first seen. ok is false unless the best distance is
// below threshold.
func Best(hash string, fps []Fingerprint, threshold int) (id string, dist int, ok bool) {
	dist = Infinite
	for _, fp := range fps {
		d := Hamming(hash, fp.Hash)
		if d < dist {
			id, dist = fp.TemplateID, d
		}
	}
	if dist >= threshold {
		return "", dist, false
	}
	return id, dist, true
}

// Hamming counts differing positions of two equal-length strings, and returns Infinite
// when the lengths differ.
func Hamming(a, b string) int {
	if len(a) != len(b) {
		return Infinite
	}
	d := 0
	for i := 0; i < len(a); i++ {
		if a[i] != b[i] {
			d++
		}
	}
	return d
}
