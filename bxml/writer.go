package bxml

import (
	"encoding/xml"
	"fmt"
	"strconv"
	"strings"
	"time"
)

const header = `<?xml version="1.0" encoding="UTF-8"?>`

// Serialize renders an ordered verb sequence as a markup document.
// A document must contain at least one verb.
func Serialize(verbs []Verb) (string, error) {
	if len(verbs) == 0 {
		return "", fmt.Errorf("document must contain at least one verb")
	}

	var sb strings.Builder
	sb.WriteString(header)
	enc := xml.NewEncoder(&sb)

	root := xml.StartElement{Name: xml.Name{Local: "Response"}}
	if err := enc.EncodeToken(root); err != nil {
		return "", err
	}
	for _, v := range verbs {
		if err := encodeVerb(enc, v); err != nil {
			return "", err
		}
	}
	if err := enc.EncodeToken(root.End()); err != nil {
		return "", err
	}
	if err := enc.Flush(); err != nil {
		return "", err
	}
	return sb.String(), nil
}

func encodeVerb(enc *xml.Encoder, v Verb) error {
	switch n := v.(type) {
	case *Speak:
		return encodeSpeak(enc, n)
	case *PlayAudio:
		return encodeText(enc, "PlayAudio", nil, n.URL)
	case *Ring:
		return encodeEmpty(enc, "Ring", []xml.Attr{attrSeconds("duration", n.Duration)})
	case *Gather:
		return encodeGather(enc, n)
	case *Bridge:
		return encodeText(enc, "Bridge", nil, n.CallID)
	case *Record:
		return encodeRecord(enc, n)
	case *Redirect:
		return encodeEmpty(enc, "Redirect", []xml.Attr{attr("redirectUrl", n.URL)})
	case *Hangup:
		return encodeEmpty(enc, "Hangup", nil)
	case *Pause:
		return encodeEmpty(enc, "Pause", []xml.Attr{attrSeconds("duration", n.Duration)})
	default:
		return fmt.Errorf("unknown verb type: %T", v)
	}
}

func encodeSpeak(enc *xml.Encoder, n *Speak) error {
	var attrs []xml.Attr
	if n.Voice != "" {
		attrs = append(attrs, attr("voice", n.Voice))
	}
	return encodeText(enc, "SpeakSentence", attrs, n.Text)
}

func encodeGather(enc *xml.Encoder, n *Gather) error {
	attrs := []xml.Attr{attr("gatherUrl", n.URL)}
	if n.MaxDigits > 0 {
		attrs = append(attrs, attr("maxDigits", strconv.Itoa(n.MaxDigits)))
	}
	if n.FirstDigitTimeout > 0 {
		attrs = append(attrs, attrSeconds("firstDigitTimeout", n.FirstDigitTimeout))
	}
	if n.TerminatingDigits != "" {
		attrs = append(attrs, attr("terminatingDigits", n.TerminatingDigits))
	}
	if n.Tag != "" {
		attrs = append(attrs, attr("tag", n.Tag))
	}

	start := xml.StartElement{Name: xml.Name{Local: "Gather"}, Attr: attrs}
	if err := enc.EncodeToken(start); err != nil {
		return err
	}
	for _, child := range n.Prompt {
		if err := encodeVerb(enc, child); err != nil {
			return err
		}
	}
	return enc.EncodeToken(start.End())
}

func encodeRecord(enc *xml.Encoder, n *Record) error {
	var attrs []xml.Attr
	if n.AvailableURL != "" {
		attrs = append(attrs, attr("recordingAvailableUrl", n.AvailableURL))
	}
	if n.CompleteURL != "" {
		attrs = append(attrs, attr("recordCompleteUrl", n.CompleteURL))
	}
	if n.MaxDuration > 0 {
		attrs = append(attrs, attrSeconds("maxDuration", n.MaxDuration))
	}
	if n.TerminatingDigits != "" {
		attrs = append(attrs, attr("terminatingDigits", n.TerminatingDigits))
	}
	return encodeEmpty(enc, "Record", attrs)
}

func encodeText(enc *xml.Encoder, name string, attrs []xml.Attr, text string) error {
	start := xml.StartElement{Name: xml.Name{Local: name}, Attr: attrs}
	if err := enc.EncodeToken(start); err != nil {
		return err
	}
	if err := enc.EncodeToken(xml.CharData(text)); err != nil {
		return err
	}
	return enc.EncodeToken(start.End())
}

func encodeEmpty(enc *xml.Encoder, name string, attrs []xml.Attr) error {
	start := xml.StartElement{Name: xml.Name{Local: name}, Attr: attrs}
	if err := enc.EncodeToken(start); err != nil {
		return err
	}
	return enc.EncodeToken(start.End())
}

func attr(name, value string) xml.Attr {
	return xml.Attr{Name: xml.Name{Local: name}, Value: value}
}

func attrSeconds(name string, d time.Duration) xml.Attr {
	return attr(name, strconv.Itoa(int(d/time.Second)))
}
