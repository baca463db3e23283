// Package post implements the cable post format: a self-describing,
// signed, content-addressed binary record with six recognized kinds plus
// an Unrecognized pass-through for forward compatibility.
package post

// Hash is the BLAKE2b-256 digest of a post's full serialized bytes.
type Hash [32]byte

// Recognized post_type tag values (spec §3).
const (
	TypeText   uint64 = 0
	TypeDelete uint64 = 1
	TypeInfo   uint64 = 2
	TypeTopic  uint64 = 3
	TypeJoin   uint64 = 4
	TypeLeave  uint64 = 5
)

// PostHeader carries the fields common to every post, in wire order.
type PostHeader struct {
	PublicKey [32]byte // Ed25519 public key of the author.
	Signature [64]byte // Ed25519 detached signature over bytes[96:].
	Links     []Hash   // Causal predecessors, author's latest-known view.
	PostType  uint64
	Timestamp uint64 // Milliseconds since the Unix epoch.
}

// Post is the atomic unit of the protocol: a header plus a typed body.
type Post struct {
	Header PostHeader
	Body   PostBody
}

// PostBody is a closed set of body variants, selected by PostHeader.PostType.
// Exactly one of the fields below is meaningful for a given post; Kind
// reports which.
type PostBody struct {
	Kind uint64 // one of the Type* constants, or an unrecognized tag.

	Text  *TextBody
	Del   *DeleteBody
	Info  *InfoBody
	Top   *TopicBody
	Join  *JoinBody
	Leave *LeaveBody

	// Unrecognized is set (and all of the above are nil) when Kind
	// does not match any recognized post_type. Such a post decodes but
	// cannot be re-encoded (spec §4.3).
	Unrecognized bool
}

// TextBody is the body of a TEXT post.
type TextBody struct {
	Channel string
	Text    string
}

// DeleteBody is the body of a DELETE post: a list of post hashes the
// author is requesting downstream peers forget.
type DeleteBody struct {
	Hashes []Hash
}

// InfoEntry is one key/value pair of an INFO post.
type InfoEntry struct {
	Key string
	Val string
}

// InfoBody is the body of an INFO post: free-form key/value metadata
// about the author, e.g. a display name.
type InfoBody struct {
	Entries []InfoEntry
}

// TopicBody is the body of a TOPIC post.
type TopicBody struct {
	Channel string
	Topic   string
}

// JoinBody is the body of a JOIN post.
type JoinBody struct {
	Channel string
}

// LeaveBody is the body of a LEAVE post.
type LeaveBody struct {
	Channel string
}

// InfoNameKey is the INFO entry key subject to username validation.
const InfoNameKey = "name"

// PostType returns the numeric post_type tag for p, derived from the body
// kind rather than re-read from the header — the two cannot drift for a
// post built through the New* constructors.
func (p *Post) PostType() uint64 {
	return p.Body.Kind
}

// IsSigned reports whether the header's signature field is non-zero.
func (h *PostHeader) IsSigned() bool {
	var zero [64]byte
	return h.Signature != zero
}

// Channel returns the channel name carried by variants that have one, and
// ("", false) for Delete and Info, which do not.
func (b *PostBody) Channel() (string, bool) {
	switch {
	case b.Text != nil:
		return b.Text.Channel, true
	case b.Top != nil:
		return b.Top.Channel, true
	case b.Join != nil:
		return b.Join.Channel, true
	case b.Leave != nil:
		return b.Leave.Channel, true
	default:
		return "", false
	}
}

// Timestamp returns the post's header timestamp.
func (p *Post) Timestamp() uint64 {
	return p.Header.Timestamp
}

func newHeader(publicKey [32]byte, links []Hash, postType, timestamp uint64) PostHeader {
	return PostHeader{
		PublicKey: publicKey,
		Links:     links,
		PostType:  postType,
		Timestamp: timestamp,
	}
}

// NewText builds an unsigned TEXT post.
func NewText(publicKey [32]byte, links []Hash, timestamp uint64, channel, text string) Post {
	return Post{
		Header: newHeader(publicKey, links, TypeText, timestamp),
		Body:   PostBody{Kind: TypeText, Text: &TextBody{Channel: channel, Text: text}},
	}
}

// NewDelete builds an unsigned DELETE post.
func NewDelete(publicKey [32]byte, links []Hash, timestamp uint64, hashes []Hash) Post {
	return Post{
		Header: newHeader(publicKey, links, TypeDelete, timestamp),
		Body:   PostBody{Kind: TypeDelete, Del: &DeleteBody{Hashes: hashes}},
	}
}

// NewInfo builds an unsigned INFO post.
func NewInfo(publicKey [32]byte, links []Hash, timestamp uint64, entries []InfoEntry) Post {
	return Post{
		Header: newHeader(publicKey, links, TypeInfo, timestamp),
		Body:   PostBody{Kind: TypeInfo, Info: &InfoBody{Entries: entries}},
	}
}

// NewTopic builds an unsigned TOPIC post.
func NewTopic(publicKey [32]byte, links []Hash, timestamp uint64, channel, topic string) Post {
	return Post{
		Header: newHeader(publicKey, links, TypeTopic, timestamp),
		Body:   PostBody{Kind: TypeTopic, Top: &TopicBody{Channel: channel, Topic: topic}},
	}
}

// NewJoin builds an unsigned JOIN post.
func NewJoin(publicKey [32]byte, links []Hash, timestamp uint64, channel string) Post {
	return Post{
		Header: newHeader(publicKey, links, TypeJoin, timestamp),
		Body:   PostBody{Kind: TypeJoin, Join: &JoinBody{Channel: channel}},
	}
}

// NewLeave builds an unsigned LEAVE post.
func NewLeave(publicKey [32]byte, links []Hash, timestamp uint64, channel string) Post {
	return Post{
		Header: newHeader(publicKey, links, TypeLeave, timestamp),
		Body:   PostBody{Kind: TypeLeave, Leave: &LeaveBody{Channel: channel}},
	}
}
