package post

import (
	"unicode/utf8"

	"github.com/cabled/cable/varint"
)

const (
	publicKeyLen = 32
	signatureLen = 64
	hashLen      = 32
)

// CountBytes returns the exact size of p's serialization. For an
// Unrecognized body it returns the header-only size; callers must not
// attempt to re-serialize such a post (WriteBytes refuses).
func CountBytes(p *Post) int {
	n := publicKeyLen + signatureLen
	n += varint.Length(uint64(len(p.Header.Links)))
	n += hashLen * len(p.Header.Links)
	n += varint.Length(p.Header.PostType)
	n += varint.Length(p.Header.Timestamp)
	n += bodyBytes(&p.Body)
	return n
}

func bodyBytes(b *PostBody) int {
	switch {
	case b.Text != nil:
		return lenPrefixedSize(b.Text.Channel) + lenPrefixedSize(b.Text.Text)
	case b.Del != nil:
		return varint.Length(uint64(len(b.Del.Hashes))) + hashLen*len(b.Del.Hashes)
	case b.Info != nil:
		n := 0
		for _, e := range b.Info.Entries {
			n += lenPrefixedSize(e.Key) + lenPrefixedSize(e.Val)
		}
		return n + varint.Length(0) // terminating sentinel
	case b.Top != nil:
		return lenPrefixedSize(b.Top.Channel) + lenPrefixedSize(b.Top.Topic)
	case b.Join != nil:
		return lenPrefixedSize(b.Join.Channel)
	case b.Leave != nil:
		return lenPrefixedSize(b.Leave.Channel)
	default:
		// Unrecognized: no body bytes known.
		return 0
	}
}

func lenPrefixedSize(s string) int {
	return varint.Length(uint64(len(s))) + len(s)
}

// WriteBytes serializes p into dst in the field order of spec §3 and
// returns the number of bytes written. The signature field is copied
// verbatim from the header; no signing happens here. Fails with a
// CodecError (CodecErrDstTooSmall) if dst is undersized, or
// CodecErrUnrecognized if p's body is the Unrecognized sentinel.
func WriteBytes(p *Post, dst []byte) (int, error) {
	if p.Body.Unrecognized {
		return 0, errUnrecognizedWrite(p.Header.PostType)
	}
	need := CountBytes(p)
	if len(dst) < need {
		return 0, errDstTooSmall(need, len(dst))
	}

	off := 0
	off += copy(dst[off:], p.Header.PublicKey[:])
	off += copy(dst[off:], p.Header.Signature[:])

	off += writeVarint(dst[off:], uint64(len(p.Header.Links)))
	for _, h := range p.Header.Links {
		off += copy(dst[off:], h[:])
	}

	off += writeVarint(dst[off:], p.Header.PostType)
	off += writeVarint(dst[off:], p.Header.Timestamp)

	off += writeBody(&p.Body, dst[off:])
	return off, nil
}

func writeVarint(dst []byte, v uint64) int {
	n, err := varint.Encode(v, dst)
	if err != nil {
		// CountBytes already guaranteed enough room; a failure here means
		// the size pre-pass and the writer have drifted apart.
		panic("post: varint encode: " + err.Error())
	}
	return n
}

func writeLenPrefixed(dst []byte, s string) int {
	off := writeVarint(dst, uint64(len(s)))
	off += copy(dst[off:], s)
	return off
}

func writeBody(b *PostBody, dst []byte) int {
	off := 0
	switch {
	case b.Text != nil:
		off += writeLenPrefixed(dst[off:], b.Text.Channel)
		off += writeLenPrefixed(dst[off:], b.Text.Text)
	case b.Del != nil:
		off += writeVarint(dst[off:], uint64(len(b.Del.Hashes)))
		for _, h := range b.Del.Hashes {
			off += copy(dst[off:], h[:])
		}
	case b.Info != nil:
		for _, e := range b.Info.Entries {
			off += writeLenPrefixed(dst[off:], e.Key)
			off += writeLenPrefixed(dst[off:], e.Val)
		}
		off += writeVarint(dst[off:], 0) // sentinel terminator
	case b.Top != nil:
		off += writeLenPrefixed(dst[off:], b.Top.Channel)
		off += writeLenPrefixed(dst[off:], b.Top.Topic)
	case b.Join != nil:
		off += writeLenPrefixed(dst[off:], b.Join.Channel)
	case b.Leave != nil:
		off += writeLenPrefixed(dst[off:], b.Leave.Channel)
	}
	return off
}

// ToBytes allocates CountBytes(p) bytes and calls WriteBytes.
func ToBytes(p *Post) ([]byte, error) {
	buf := make([]byte, CountBytes(p))
	n, err := WriteBytes(p, buf)
	if err != nil {
		return nil, err
	}
	return buf[:n], nil
}

// cursor is a small bounds-checked reader over src, in the style of the
// donor consensus package's offset-tracking decode helpers.
type cursor struct {
	b   []byte
	pos int
}

func (c *cursor) remaining() int {
	if c.pos >= len(c.b) {
		return 0
	}
	return len(c.b) - c.pos
}

func (c *cursor) readExact(n int) ([]byte, error) {
	if n < 0 || c.remaining() < n {
		return nil, errTruncated("unexpected end of buffer")
	}
	start := c.pos
	c.pos += n
	return c.b[start:c.pos], nil
}

func (c *cursor) readHash() (Hash, error) {
	var h Hash
	b, err := c.readExact(hashLen)
	if err != nil {
		return h, err
	}
	copy(h[:], b)
	return h, nil
}

func (c *cursor) readVarint() (uint64, error) {
	read, v, err := varint.Decode(c.b[c.pos:])
	if err != nil {
		if err == varint.ErrOverflow {
			return 0, ErrVarintOverflow
		}
		return 0, errTruncated(err.Error())
	}
	c.pos += read
	return v, nil
}

func (c *cursor) readLenPrefixedString(field string, maxLen int) (string, error) {
	n, err := c.readVarint()
	if err != nil {
		return "", err
	}
	if maxLen >= 0 && n > uint64(maxLen) {
		return "", validationErr(field, "declared length exceeds maximum")
	}
	b, err := c.readExact(int(n))
	if err != nil {
		return "", err
	}
	if !utf8.Valid(b) {
		return "", errInvalidUTF8(field)
	}
	return string(b), nil
}

// FromBytes decodes one post from the front of src and returns the
// number of bytes consumed along with the decoded Post.
func FromBytes(src []byte) (int, Post, error) {
	c := &cursor{b: src}
	var p Post

	pk, err := c.readExact(publicKeyLen)
	if err != nil {
		return 0, p, err
	}
	copy(p.Header.PublicKey[:], pk)

	sig, err := c.readExact(signatureLen)
	if err != nil {
		return 0, p, err
	}
	copy(p.Header.Signature[:], sig)

	linkCount, err := c.readVarint()
	if err != nil {
		return 0, p, err
	}
	if linkCount > 0 {
		links := make([]Hash, linkCount)
		for i := range links {
			h, err := c.readHash()
			if err != nil {
				return 0, p, err
			}
			links[i] = h
		}
		p.Header.Links = links
	}

	postType, err := c.readVarint()
	if err != nil {
		return 0, p, err
	}
	p.Header.PostType = postType

	timestamp, err := c.readVarint()
	if err != nil {
		return 0, p, err
	}
	p.Header.Timestamp = timestamp

	body, err := readBody(c, postType)
	if err != nil {
		return 0, p, err
	}
	p.Body = body

	return c.pos, p, nil
}

// readBody decodes the body for postType. An unrecognized tag decodes
// into the Unrecognized sentinel and consumes no further bytes — the
// decoder has no way to know the body's length for a tag it doesn't
// understand, and must not guess (spec §4.3).
func readBody(c *cursor, postType uint64) (PostBody, error) {
	switch postType {
	case TypeText:
		channel, err := c.readLenPrefixedString("channel", 64)
		if err != nil {
			return PostBody{}, err
		}
		if err := validateChannel(channel); err != nil {
			return PostBody{}, err
		}
		text, err := c.readLenPrefixedString("text", -1)
		if err != nil {
			return PostBody{}, err
		}
		return PostBody{Kind: TypeText, Text: &TextBody{Channel: channel, Text: text}}, nil

	case TypeDelete:
		count, err := c.readVarint()
		if err != nil {
			return PostBody{}, err
		}
		hashes := make([]Hash, count)
		for i := range hashes {
			h, err := c.readHash()
			if err != nil {
				return PostBody{}, err
			}
			hashes[i] = h
		}
		return PostBody{Kind: TypeDelete, Del: &DeleteBody{Hashes: hashes}}, nil

	case TypeInfo:
		var entries []InfoEntry
		for {
			keyLen, err := c.readVarint()
			if err != nil {
				return PostBody{}, err
			}
			if keyLen == 0 {
				break
			}
			keyBytes, err := c.readExact(int(keyLen))
			if err != nil {
				return PostBody{}, err
			}
			if !utf8.Valid(keyBytes) {
				return PostBody{}, errInvalidUTF8("info.key")
			}
			key := string(keyBytes)

			val, err := c.readLenPrefixedString("info.val", -1)
			if err != nil {
				return PostBody{}, err
			}
			if key == InfoNameKey {
				if err := validateUsername(val); err != nil {
					return PostBody{}, err
				}
			}
			entries = append(entries, InfoEntry{Key: key, Val: val})
		}
		return PostBody{Kind: TypeInfo, Info: &InfoBody{Entries: entries}}, nil

	case TypeTopic:
		channel, err := c.readLenPrefixedString("channel", 64)
		if err != nil {
			return PostBody{}, err
		}
		if err := validateChannel(channel); err != nil {
			return PostBody{}, err
		}
		topic, err := c.readLenPrefixedString("topic", 512)
		if err != nil {
			return PostBody{}, err
		}
		if err := validateTopic(topic); err != nil {
			return PostBody{}, err
		}
		return PostBody{Kind: TypeTopic, Top: &TopicBody{Channel: channel, Topic: topic}}, nil

	case TypeJoin:
		channel, err := c.readLenPrefixedString("channel", 64)
		if err != nil {
			return PostBody{}, err
		}
		if err := validateChannel(channel); err != nil {
			return PostBody{}, err
		}
		return PostBody{Kind: TypeJoin, Join: &JoinBody{Channel: channel}}, nil

	case TypeLeave:
		channel, err := c.readLenPrefixedString("channel", 64)
		if err != nil {
			return PostBody{}, err
		}
		if err := validateChannel(channel); err != nil {
			return PostBody{}, err
		}
		return PostBody{Kind: TypeLeave, Leave: &LeaveBody{Channel: channel}}, nil

	default:
		return PostBody{Kind: postType, Unrecognized: true}, nil
	}
}

// CountFromBytes helps callers reading posts preceded by their own varint
// length prefix (the framing this package's Non-goals leave to the
// caller): it returns the number of bytes the varint prefix itself
// occupies plus the payload length it declares.
func CountFromBytes(src []byte) (int, error) {
	if len(src) == 0 {
		return 0, ErrMessageEmpty
	}
	read, payloadLen, err := varint.Decode(src)
	if err != nil {
		if err == varint.ErrOverflow {
			return 0, ErrVarintOverflow
		}
		return 0, errTruncated(err.Error())
	}
	return read + int(payloadLen), nil
}
