// flatwatch-scraper monitors saved real-estate listing searches and
// surfaces newly appeared listings exactly once per watch task.
//
// Each cycle the orchestrator loads the due watch tasks, groups them by
// canonical search URL so a shared search is fetched once, and resolves
// every group through the strategy ladder: the structured capture path
// first, the HTML fallback second. Extracted listings are deduplicated
// per task against the permalinks it has already seen, optionally
// enriched, persisted in bounded batches with retry, and announced on
// Pub/Sub for the downstream notifier. Checkpoints advance only after
// persistence succeeds, so a failed group simply re-candidates on the
// next cycle. An ops HTTP server exposes health, Prometheus metrics,
// last-cycle status, and the runtime source blocklist.
package main

import "github.com/flatwatch/scraper/cmd"

func main() {
	cmd.Execute()
}
