package bxml

import (
	"encoding/xml"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"
)

// Parse parses a markup document and returns its verb sequence. It is the
// inverse of Serialize for well-formed documents and is used to verify
// executor output against the original verb sequence.
func Parse(data []byte) (*Document, error) {
	decoder := xml.NewDecoder(strings.NewReader(string(data)))
	var doc Document

	for {
		token, err := decoder.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("xml parse error: %w", err)
		}

		if se, ok := token.(xml.StartElement); ok {
			if se.Name.Local == "Response" {
				if err := parseResponse(decoder, &se, &doc); err != nil {
					return nil, err
				}
				if len(doc.Verbs) == 0 {
					return nil, fmt.Errorf("empty <Response> document")
				}
				return &doc, nil
			}
		}
	}

	return nil, fmt.Errorf("no <Response> element found")
}

func parseResponse(decoder *xml.Decoder, start *xml.StartElement, doc *Document) error {
	for _, attr := range start.Attr {
		return fmt.Errorf("unknown attribute '%s' on <Response>", attr.Name.Local)
	}

	for {
		token, err := decoder.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return err
		}

		switch t := token.(type) {
		case xml.StartElement:
			verb, err := parseVerb(decoder, &t)
			if err != nil {
				return err
			}
			if verb != nil {
				doc.Verbs = append(doc.Verbs, verb)
			}
		case xml.EndElement:
			if t.Name.Local == "Response" {
				return nil
			}
		}
	}
	return nil
}

func parseVerb(decoder *xml.Decoder, start *xml.StartElement) (Verb, error) {
	switch start.Name.Local {
	case "SpeakSentence":
		return parseSpeak(decoder, start)
	case "PlayAudio":
		return parsePlayAudio(decoder, start)
	case "Ring":
		return parseRing(decoder, start)
	case "Gather":
		return parseGather(decoder, start)
	case "Bridge":
		return parseBridge(decoder, start)
	case "Record":
		return parseRecord(decoder, start)
	case "Redirect":
		return parseRedirect(decoder, start)
	case "Hangup":
		decoder.Skip()
		return &Hangup{}, nil
	case "Pause":
		return parsePause(decoder, start)
	default:
		return nil, fmt.Errorf("unknown markup element: <%s>", start.Name.Local)
	}
}

func parseSpeak(decoder *xml.Decoder, start *xml.StartElement) (*Speak, error) {
	speak := &Speak{}
	for _, attr := range start.Attr {
		switch attr.Name.Local {
		case "voice":
			speak.Voice = attr.Value
		default:
			return nil, fmt.Errorf("unknown attribute '%s' on <SpeakSentence>", attr.Name.Local)
		}
	}
	if err := decoder.DecodeElement(&speak.Text, start); err != nil {
		return nil, err
	}
	return speak, nil
}

func parsePlayAudio(decoder *xml.Decoder, start *xml.StartElement) (*PlayAudio, error) {
	play := &PlayAudio{}
	for _, attr := range start.Attr {
		return nil, fmt.Errorf("unknown attribute '%s' on <PlayAudio>", attr.Name.Local)
	}
	if err := decoder.DecodeElement(&play.URL, start); err != nil {
		return nil, err
	}
	return play, nil
}

func parseRing(decoder *xml.Decoder, start *xml.StartElement) (*Ring, error) {
	ring := &Ring{}
	for _, attr := range start.Attr {
		switch attr.Name.Local {
		case "duration":
			if n, err := strconv.Atoi(attr.Value); err == nil {
				ring.Duration = time.Duration(n) * time.Second
			}
		default:
			return nil, fmt.Errorf("unknown attribute '%s' on <Ring>", attr.Name.Local)
		}
	}
	decoder.Skip()
	return ring, nil
}

func parseGather(decoder *xml.Decoder, start *xml.StartElement) (*Gather, error) {
	gather := &Gather{}

	for _, attr := range start.Attr {
		switch attr.Name.Local {
		case "gatherUrl":
			gather.URL = attr.Value
		case "maxDigits":
			if n, err := strconv.Atoi(attr.Value); err == nil {
				gather.MaxDigits = n
			}
		case "firstDigitTimeout":
			if n, err := strconv.Atoi(attr.Value); err == nil {
				gather.FirstDigitTimeout = time.Duration(n) * time.Second
			}
		case "terminatingDigits":
			gather.TerminatingDigits = attr.Value
		case "tag":
			gather.Tag = attr.Value
		default:
			return nil, fmt.Errorf("unknown attribute '%s' on <Gather>", attr.Name.Local)
		}
	}

	for {
		token, err := decoder.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}

		switch t := token.(type) {
		case xml.StartElement:
			verb, err := parseVerb(decoder, &t)
			if err != nil {
				return nil, err
			}
			if verb != nil {
				gather.Prompt = append(gather.Prompt, verb)
			}
		case xml.EndElement:
			if t.Name.Local == "Gather" {
				return gather, nil
			}
		}
	}

	return gather, nil
}

func parseBridge(decoder *xml.Decoder, start *xml.StartElement) (*Bridge, error) {
	bridge := &Bridge{}
	for _, attr := range start.Attr {
		return nil, fmt.Errorf("unknown attribute '%s' on <Bridge>", attr.Name.Local)
	}
	if err := decoder.DecodeElement(&bridge.CallID, start); err != nil {
		return nil, err
	}
	return bridge, nil
}

func parseRecord(decoder *xml.Decoder, start *xml.StartElement) (*Record, error) {
	record := &Record{}
	for _, attr := range start.Attr {
		switch attr.Name.Local {
		case "recordingAvailableUrl":
			record.AvailableURL = attr.Value
		case "recordCompleteUrl":
			record.CompleteURL = attr.Value
		case "maxDuration":
			if n, err := strconv.Atoi(attr.Value); err == nil {
				record.MaxDuration = time.Duration(n) * time.Second
			}
		case "terminatingDigits":
			record.TerminatingDigits = attr.Value
		default:
			return nil, fmt.Errorf("unknown attribute '%s' on <Record>", attr.Name.Local)
		}
	}
	decoder.Skip()
	return record, nil
}

func parseRedirect(decoder *xml.Decoder, start *xml.StartElement) (*Redirect, error) {
	redirect := &Redirect{}
	for _, attr := range start.Attr {
		switch attr.Name.Local {
		case "redirectUrl":
			redirect.URL = attr.Value
		default:
			return nil, fmt.Errorf("unknown attribute '%s' on <Redirect>", attr.Name.Local)
		}
	}
	decoder.Skip()
	return redirect, nil
}

func parsePause(decoder *xml.Decoder, start *xml.StartElement) (*Pause, error) {
	pause := &Pause{Duration: 1 * time.Second} // default 1s
	for _, attr := range start.Attr {
		switch attr.Name.Local {
		case "duration":
			if n, err := strconv.Atoi(attr.Value); err == nil {
				pause.Duration = time.Duration(n) * time.Second
			}
		default:
			return nil, fmt.Errorf("unknown attribute '%s' on <Pause>", attr.Name.Local)
		}
	}
	decoder.Skip()
	return pause, nil
}
