// Package allocator issues component identifiers.
//
// Codes are COMP<yyyymmdd><seq>, where seq comes from an atomic per-day counter.
// The allocator never reads or writes component records; persisting them and
// reacting to unique-key conflicts is the caller's job.
package allocator

import (
	"context"
	"fmt"
	"time"

	"github.com/bitfantasy/railtrace/internal/railtrace/apperr"
	"github.com/google/uuid"
)

const (
	dayLayout = "20060102"
	// MinTokenLength is the shortest token that still yields the 8 char QR suffix.
	MinTokenLength = 8
)

// Sequencer hands out the next value of a per-day counter. Implementations must
// increment atomically in their backing store.
type Sequencer interface {
	Next(ctx context.Context, day string) (int64, error)
}

// Allocation 分配结果
type Allocation struct {
	ComponentID  string
	QRCode       string
	Token        string
	BatchNumber  string
	SerialNumber string
	Day          string
	At           time.Time
	// CallerToken is true when Token came from the request.
	CallerToken bool
}

// Allocator 标识分配器
type Allocator struct {
	seq      Sequencer
	now      func() time.Time
	newToken func() string
}

// Option customises an Allocator.
type Option func(*Allocator)

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(a *Allocator) { a.now = now }
}

// WithTokenSource replaces uuid.NewString.
func WithTokenSource(f func() string) Option {
	return func(a *Allocator) { a.newToken = f }
}

func New(seq Sequencer, opts ...Option) *Allocator {
	a := &Allocator{
		seq:      seq,
		now:      time.Now,
		newToken: uuid.NewString,
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Allocate draws the next identifiers for a new component. callerToken may be empty.
func (a *Allocator) Allocate(ctx context.Context, callerToken string) (*Allocation, error) {
	token := callerToken
	fromCaller := token != ""
	if !fromCaller {
		token = a.newToken()
	}
	if len(token) < MinTokenLength {
		return nil, apperr.New(apperr.InvalidArgument, "uuid must be at least %d characters", MinTokenLength)
	}

	now := a.now().UTC()
	day := now.Format(dayLayout)

	n, err := a.seq.Next(ctx, day)
	if err != nil {
		return nil, apperr.Wrap(apperr.Internal, err, "next component sequence")
	}

	return &Allocation{
		ComponentID:  fmt.Sprintf("COMP%s%06d", day, n),
		QRCode:       "QR" + day + suffix(token, 8),
		Token:        token,
		BatchNumber:  "BATCH" + day + suffix(token, 4),
		SerialNumber: "SER" + day + suffix(token, 6),
		Day:          day,
		At:           now,
		CallerToken:  fromCaller,
	}, nil
}

func suffix(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[len(s)-n:]
}
