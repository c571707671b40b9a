package crews

import (
	"context"
	"crypto/rand"
	"strconv"
	"strings"
	"sync/atomic"

	"go.uber.org/zap"

	"github.com/tripwell/crew-planner-api/internal/domain"
	clockport "github.com/tripwell/crew-planner-api/internal/ports/out/clock"
)

const (
	maxCodeAttempts   = 10
	maxHandleAttempts = 5
)

// codeGenerator produces join codes and handles. Collisions are checked against the store by
// the caller-supplied exists func; the store's unique constraints remain the source of truth.
type codeGenerator struct {
	clk  clockport.Clock
	log  *zap.Logger
	read func([]byte) (int, error)

	// lastTick is the most recent millisecond value handed out by nextTick.
	lastTick atomic.Int64

	onFallback func()
}

func newCodeGenerator(clk clockport.Clock, log *zap.Logger) *codeGenerator {
	return &codeGenerator{
		clk:        clk,
		log:        log,
		read:       rand.Read,
		onFallback: func() {},
	}
}

// nextTick returns the clock's Unix milliseconds, bumped so that every call returns a value
// strictly greater than the previous one.
func (g *codeGenerator) nextTick() int64 {
	now := g.clk.Now().UnixMilli()
	for {
		last := g.lastTick.Load()
		next := now
		if next <= last {
			next = last + 1
		}
		if g.lastTick.CompareAndSwap(last, next) {
			return next
		}
	}
}

func (g *codeGenerator) randomCode() (string, error) {
	buf := make([]byte, domain.JoinCodeLength)
	if _, err := g.read(buf); err != nil {
		return "", err
	}
	alphabet := domain.JoinCodeAlphabet
	out := make([]byte, len(buf))
	for i, b := range buf {
		// 256 is a multiple of the alphabet size, so the modulo is unbiased.
		out[i] = alphabet[int(b)%len(alphabet)]
	}
	return string(out), nil
}

// fallbackCode encodes a fresh tick in the join code alphabet. Current millisecond timestamps
// encode to 9 characters, so the result never collides with a random 6-character code.
func (g *codeGenerator) fallbackCode() string {
	return encodeAlphabet(uint64(g.nextTick()))
}

// JoinCode returns a code that exists reports as free, or the time-derived fallback after
// maxCodeAttempts collisions.
func (g *codeGenerator) JoinCode(ctx context.Context, exists func(context.Context, string) (bool, error)) (string, error) {
	for i := 0; i < maxCodeAttempts; i++ {
		code, err := g.randomCode()
		if err != nil {
			return "", err
		}
		taken, err := exists(ctx, code)
		if err != nil {
			return "", err
		}
		if !taken {
			return code, nil
		}
	}
	code := g.fallbackCode()
	g.onFallback()
	g.log.Warn("join code generation fell back to time-derived code", zap.Int("attempts", maxCodeAttempts))
	return code, nil
}

// Handle returns a free handle derived from name. After maxHandleAttempts taken candidates it
// returns a suffixed fallback without checking it.
func (g *codeGenerator) Handle(ctx context.Context, name string, exists func(context.Context, string) (bool, error)) (string, error) {
	base := domain.Slugify(name)
	candidate := base
	for i := 0; i < maxHandleAttempts; i++ {
		taken, err := exists(ctx, candidate)
		if err != nil {
			return "", err
		}
		if !taken {
			return candidate, nil
		}
		candidate = withSuffix(base, strconv.FormatInt(g.nextTick(), 36))
	}
	return withSuffix(base, strconv.FormatInt(g.nextTick(), 36)), nil
}

// withSuffix appends "-suffix" to base, trimming base so the result fits MaxHandleLength.
func withSuffix(base, suffix string) string {
	limit := domain.MaxHandleLength - len(suffix) - 1
	if limit < 1 {
		limit = 1
	}
	if len(base) > limit {
		base = strings.TrimRight(base[:limit], "-")
	}
	return base + "-" + suffix
}

func encodeAlphabet(v uint64) string {
	alphabet := domain.JoinCodeAlphabet
	n := uint64(len(alphabet))
	if v == 0 {
		return string(alphabet[0])
	}
	var buf [16]byte
	i := len(buf)
	for v > 0 {
		i--
		buf[i] = alphabet[v%n]
		v /= n
	}
	return string(buf[i:])
}
