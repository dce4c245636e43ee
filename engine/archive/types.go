package archive

// Wire structs for the Twitter/X export format. Field names mirror the
// export's snake_case JSON; everything the pipeline does not use is ignored
// by encoding/json.

type rawExport struct {
	Account *rawAccount  `json:"account"`
	Tweets  []rawWrapper `json:"tweets"`
}

type rawAccount struct {
	AccountID   string `json:"accountId"`
	Username    string `json:"username"`
	DisplayName string `json:"accountDisplayName"`
}

// rawWrapper matches the export's per-item envelope {"tweet": {...}}.
// A bare tweet object also decodes: the Tweet field stays nil and the
// inline fields are used instead.
type rawWrapper struct {
	Tweet *rawTweet `json:"tweet"`
	rawTweet
}

type rawTweet struct {
	IDStr                string      `json:"id_str"`
	ID                   string      `json:"id"`
	Text                 string      `json:"text"`
	FullText             string      `json:"full_text"`
	CreatedAt            string      `json:"created_at"`
	UserIDStr            string      `json:"user_id_str"`
	InReplyToStatusIDStr string      `json:"in_reply_to_status_id_str"`
	InReplyToUserIDStr   string      `json:"in_reply_to_user_id_str"`
	Entities             rawEntities `json:"entities"`
}

type rawEntities struct {
	URLs []rawURL `json:"urls"`
}

type rawURL struct {
	URL         string `json:"url"`
	ExpandedURL string `json:"expanded_url"`
	DisplayURL  string `json:"display_url"`
}
