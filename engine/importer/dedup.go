package importer

import (
	"context"
	"time"
)

// resolveCutoff determines the timestamp below which posts are excluded from
// this import. Returns a zero time when everything should be imported.
//
// Policy, in order: force imports everything (duplicates possible); a ledger
// entry supplies lastTweetDate; otherwise a bounded sample of the username's
// existing index points supplies the max observed created_at. A failed
// sample query is non-fatal: log and import everything rather than abort.
func (imp *Importer) resolveCutoff(ctx context.Context, username string, force bool) time.Time {
	if force {
		imp.log.Info("importer: forced import, no cutoff", "username", username)
		return time.Time{}
	}

	if entry, ok := imp.ledger.Get(username); ok {
		imp.log.Info("importer: cutoff from ledger",
			"username", username, "last_tweet_date", entry.LastTweetDate)
		return entry.LastTweetDate
	}

	cutoff, ok, err := imp.index.MaxCreatedAt(ctx, username, imp.cfg.SampleLimit)
	if err != nil {
		imp.log.Warn("importer: index sample failed, importing everything",
			"username", username, "error", err)
		return time.Time{}
	}
	if !ok {
		imp.log.Info("importer: no prior points, first import", "username", username)
		return time.Time{}
	}
	imp.log.Info("importer: cutoff from index sample",
		"username", username, "cutoff", cutoff)
	return cutoff
}
