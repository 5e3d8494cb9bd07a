package platform

import (
	"context"
	"time"

	"golang.org/x/time/rate"
)

type limitedClient struct {
	Client
	lim *rate.Limiter
}

// Limited wraps c so consecutive posts are at least every apart.
// The first post goes through immediately.
func Limited(c Client, every time.Duration) Client {
	if every <= 0 {
		return c
	}
	return &limitedClient{Client: c, lim: rate.NewLimiter(rate.Every(every), 1)}
}

func (l *limitedClient) Post(ctx context.Context, text string, opts Options) (Result, error) {
	if err := l.lim.Wait(ctx); err != nil {
		return Result{}, err
	}
	return l.Client.Post(ctx, text, opts)
}
