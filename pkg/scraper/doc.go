// Package scraper exposes the operations of one browsing session.
//
// A Session wraps a view.Page and keeps what the user has gathered so far:
// the post that is open with its comments, and the search result cards
// collected across list passes. Operations:
//
//   - ExtractCurrentItem reads the open detail view and stores it
//   - CollectComments scrolls the comment feed until the collection
//     engine converges, exhausts the feed, hits the ceiling or is cancelled
//   - CollectListItems adds rendered search cards, optionally scrolling
//   - RunBatch opens every collected card in turn
//   - DownloadMedia archives the images and videos of the open post
//   - ExportAccumulatedData renders everything as CSV
//
// Only one operation runs at a time; a second start is rejected with an
// already_running error. CancelActiveRun stops the active one at its next
// pause.
package scraper
