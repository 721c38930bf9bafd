// Package ratelimit paces outgoing asset requests.
//
// Pacer wraps golang.org/x/time/rate: after an initial burst, requests are
// spaced at least the configured interval apart. The media downloader uses
// it to keep a fixed pause between image fetches.
//
//	pacer := ratelimit.NewPacer(300*time.Millisecond, 1)
//	if err := pacer.Wait(ctx); err != nil {
//	    return err
//	}
package ratelimit
