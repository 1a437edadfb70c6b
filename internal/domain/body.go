package domain

import "strings"

// Body is the typed content of a message. The set of variants is closed:
// only this package can add one, and every consumer goes through
// BodyVisitor, so a new variant fails to compile until all consumers handle it.
type Body interface {
	Accept(v BodyVisitor)
	isBody()
}

// BodyVisitor handles every message body variant.
type BodyVisitor interface {
	VisitText(b TextBody)
	VisitImage(b ImageBody)
	VisitFile(b FileBody)
	VisitSystem(b SystemBody)
}

type TextBody struct {
	Text string
}

type ImageBody struct {
	URL     string
	Caption string
	Width   int
	Height  int
}

type FileBody struct {
	Name string
	URL  string
	Size int64
	MIME string
}

type SystemBody struct {
	Text string
}

func (b TextBody) Accept(v BodyVisitor)   { v.VisitText(b) }
func (b ImageBody) Accept(v BodyVisitor)  { v.VisitImage(b) }
func (b FileBody) Accept(v BodyVisitor)   { v.VisitFile(b) }
func (b SystemBody) Accept(v BodyVisitor) { v.VisitSystem(b) }

func (TextBody) isBody()   {}
func (ImageBody) isBody()  {}
func (FileBody) isBody()   {}
func (SystemBody) isBody() {}

// Body decodes the wire message type and metadata into a typed body.
// Unknown types degrade to text so a newer server never breaks rendering.
func (m Message) Body() Body {
	switch m.Type {
	case MessageImage:
		return ImageBody{
			URL:     firstNonEmpty(metaString(m.Metadata, "url"), metaString(m.Metadata, "file_path")),
			Caption: m.Content,
			Width:   metaInt(m.Metadata, "width"),
			Height:  metaInt(m.Metadata, "height"),
		}
	case MessageFile:
		return FileBody{
			Name: firstNonEmpty(metaString(m.Metadata, "file_name"), m.Content),
			URL:  firstNonEmpty(metaString(m.Metadata, "url"), metaString(m.Metadata, "file_path")),
			Size: int64(metaInt(m.Metadata, "size")),
			MIME: firstNonEmpty(metaString(m.Metadata, "mime_type"), metaString(m.Metadata, "file_type")),
		}
	case MessageSystem:
		return SystemBody{Text: m.Content}
	default:
		return TextBody{Text: m.Content}
	}
}

func metaString(meta map[string]any, key string) string {
	if v, ok := meta[key].(string); ok {
		return v
	}
	return ""
}

// metaInt accepts the float64 that encoding/json produces as well as ints
// set by local code.
func metaInt(meta map[string]any, key string) int {
	switch v := meta[key].(type) {
	case float64:
		return int(v)
	case int:
		return v
	case int64:
		return int(v)
	}
	return 0
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

// FileMessageType maps an attachment's file type to the message type it is
// rendered as.
func FileMessageType(fileType string) MessageType {
	if fileType == "image" || strings.HasPrefix(fileType, "image/") {
		return MessageImage
	}
	return MessageFile
}
