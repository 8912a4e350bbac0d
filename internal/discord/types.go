package discord

const publicThreadType = 11

// Message is the body of a channel message.
type Message struct {
	Content string  `json:"content,omitempty"`
	Embeds  []Embed `json:"embeds,omitempty"`
	Poll    *Poll   `json:"poll,omitempty"`
}

// Embed is a rich message card.
type Embed struct {
	Title       string       `json:"title,omitempty"`
	Description string       `json:"description,omitempty"`
	URL         string       `json:"url,omitempty"`
	Color       int          `json:"color,omitempty"`
	Timestamp   string       `json:"timestamp,omitempty"`
	Thumbnail   *EmbedImage  `json:"thumbnail,omitempty"`
	Fields      []EmbedField `json:"fields,omitempty"`
	Footer      *EmbedFooter `json:"footer,omitempty"`
}

type EmbedImage struct {
	URL string `json:"url"`
}

type EmbedField struct {
	Name   string `json:"name"`
	Value  string `json:"value"`
	Inline bool   `json:"inline,omitempty"`
}

type EmbedFooter struct {
	Text string `json:"text"`
}

// Poll is a native Discord poll attached to a message.
type Poll struct {
	Question         PollMedia    `json:"question"`
	Answers          []PollAnswer `json:"answers"`
	Duration         int          `json:"duration"` // hours
	AllowMultiselect bool         `json:"allow_multiselect"`
}

type PollMedia struct {
	Text string `json:"text"`
}

type PollAnswer struct {
	PollMedia PollMedia `json:"poll_media"`
}

// MessageRef identifies a posted message.
type MessageRef struct {
	ID        string `json:"id"`
	ChannelID string `json:"channel_id"`
}

// ThreadRef identifies a created thread.
type ThreadRef struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// ChannelPatch is the subset of channel fields the notifier modifies.
type ChannelPatch struct {
	Name     string `json:"name,omitempty"`
	Archived *bool  `json:"archived,omitempty"`
	Locked   *bool  `json:"locked,omitempty"`
}

type threadRequest struct {
	Name                string `json:"name"`
	AutoArchiveDuration int    `json:"auto_archive_duration"`
	Type                int    `json:"type,omitempty"`
}
