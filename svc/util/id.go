package util

import (
	"context"
	"crypto/rand"
	"math/big"
	mrand "math/rand/v2"
	"strconv"
	"time"
)

const (
	base36Chars    = "0123456789abcdefghijklmnopqrstuvwxyz"
	randomFragment = 9
	maxIDRetries   = 5
)

// NewID returns a random base-36 fragment followed by the base-36 millisecond clock.
// It is URL-safe and never fails; uniqueness is probabilistic only.
func NewID() string {
	return randomBase36(randomFragment) + strconv.FormatInt(time.Now().UnixMilli(), 36)
}

// GenID draws candidates until exists reports a free one. Lookup errors and
// exhausted retries still yield an id: a collision overwrites, it never blocks a share.
func GenID(ctx context.Context, exists func(context.Context, string) (bool, error)) string {
	id := NewID()
	if exists == nil {
		return id
	}
	for retry := 0; retry < maxIDRetries; retry++ {
		taken, err := exists(ctx, id)
		if err != nil {
			Warn().Err(err).Str("id", id).Msg("id collision check failed, using unchecked id")
			return id
		}
		if !taken {
			return id
		}
		Debug().Str("id", id).Int("retry", retry).Msg("id collision")
		id = NewID()
	}
	Warn().Str("id", id).Msg("id collision retries exhausted")
	return id
}

func randomBase36(n int) string {
	out := make([]byte, n)
	max := big.NewInt(int64(len(base36Chars)))
	for i := range out {
		v, err := rand.Int(rand.Reader, max)
		if err != nil {
			out[i] = base36Chars[mrand.IntN(len(base36Chars))]
			continue
		}
		out[i] = base36Chars[v.Int64()]
	}
	return string(out)
}
