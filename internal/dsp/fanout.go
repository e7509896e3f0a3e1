package dsp

import (
	"context"
	"sort"
	"sync"
)

// FetchAll queries every target concurrently and waits for all of them;
// slow partners never block fast ones from starting. Results come back
// ordered by top price descending, ties keeping the targets' order.
func (c *Client) FetchAll(ctx context.Context, targets []Target, body []byte, tmaxMs int) []Result {
	results := make([]Result, len(targets))

	var wg sync.WaitGroup
	for i, target := range targets {
		wg.Add(1)
		go func(i int, target Target) {
			defer wg.Done()
			results[i] = c.Call(ctx, target, body, tmaxMs)
		}(i, target)
	}
	wg.Wait()

	sort.SliceStable(results, func(a, b int) bool {
		return results[a].TopPrice > results[b].TopPrice
	})
	return results
}
