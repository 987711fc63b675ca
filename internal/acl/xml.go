// Copyright 2026 The Ciguard Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package acl

import (
	"encoding/xml"
	"errors"
	"io"
	"strconv"
	"strings"
	"time"
)

// DefaultSyncInterval is how often the external admin registry is polled
// when the configuration does not say otherwise.
const DefaultSyncInterval = 15 * time.Minute

// Strategy is the complete persisted authorization strategy: the decision
// engine plus the host settings stored alongside it. SyncInterval paces the
// external admin registry sync. CreateFolders mirrors provider groups as
// folders on the CI server; it is carried for the host and not interpreted
// here.
type Strategy struct {
	ACL           *ACL
	SyncInterval  time.Duration
	CreateFolders bool
}

// EncodeXML writes the strategy as an <authorization> document:
//
//	<authorization>
//	  <syncInterval>15m0s</syncInterval>
//	  <createFolders>false</createFolders>
//	  <acl>
//	    <useExternalAdmins>false</useExternalAdmins>
//	    <admin>alice</admin>
//	    <permission>Admin:overall.administer</permission>
//	  </acl>
//	</authorization>
//
// Errors come only from the writer or the XML encoder, never from the
// strategy value itself.
func (c *Codec) EncodeXML(w io.Writer, s *Strategy) error {
	if _, err := io.WriteString(w, xml.Header); err != nil {
		return err
	}
	enc := xml.NewEncoder(w)
	enc.Indent("", "  ")

	root := xml.StartElement{Name: xml.Name{Local: "authorization"}}
	if err := enc.EncodeToken(root); err != nil {
		return err
	}
	if err := encodeTextElement(enc, "syncInterval", s.SyncInterval.String()); err != nil {
		return err
	}
	if err := encodeTextElement(enc, "createFolders", strconv.FormatBool(s.CreateFolders)); err != nil {
		return err
	}

	aclStart := xml.StartElement{Name: xml.Name{Local: "acl"}}
	if err := enc.EncodeToken(aclStart); err != nil {
		return err
	}
	engine := s.ACL
	if engine == nil {
		engine = New("", false, nil)
	}
	for _, rec := range c.Encode(engine) {
		if err := encodeTextElement(enc, rec.Tag, rec.Value); err != nil {
			return err
		}
	}
	if err := enc.EncodeToken(aclStart.End()); err != nil {
		return err
	}
	if err := enc.EncodeToken(root.End()); err != nil {
		return err
	}
	return enc.Flush()
}

// DecodeXML reads a strategy document. The error path covers malformed XML
// only; within a well-formed document the binding is as forgiving as Decode:
// unknown elements are skipped, an unparseable syncInterval falls back to
// DefaultSyncInterval, and every element under <acl> is treated as a record
// and handed to Decode. A document without an <acl> element yields an ACL
// that denies everything.
func (c *Codec) DecodeXML(r io.Reader) (*Strategy, error) {
	dec := xml.NewDecoder(r)
	s := &Strategy{
		ACL:          New("", false, nil),
		SyncInterval: DefaultSyncInterval,
	}

	root, err := nextStart(dec)
	if err != nil {
		return nil, err
	}
	if root == nil {
		return nil, io.ErrUnexpectedEOF
	}

	for {
		tok, err := dec.Token()
		if err != nil {
			if errors.Is(err, io.EOF) {
				return nil, io.ErrUnexpectedEOF
			}
			return nil, err
		}
		switch el := tok.(type) {
		case xml.EndElement:
			return s, nil
		case xml.StartElement:
			switch el.Name.Local {
			case "syncInterval":
				text, err := textOf(dec)
				if err != nil {
					return nil, err
				}
				if d, perr := time.ParseDuration(text); perr == nil && d > 0 {
					s.SyncInterval = d
				}
			case "createFolders":
				text, err := textOf(dec)
				if err != nil {
					return nil, err
				}
				s.CreateFolders = strings.EqualFold(text, "true")
			case "acl":
				records, err := collectRecords(dec)
				if err != nil {
					return nil, err
				}
				s.ACL = c.Decode(records)
			default:
				if err := dec.Skip(); err != nil {
					return nil, err
				}
			}
		}
	}
}

func encodeTextElement(enc *xml.Encoder, name, value string) error {
	start := xml.StartElement{Name: xml.Name{Local: name}}
	if err := enc.EncodeToken(start); err != nil {
		return err
	}
	if err := enc.EncodeToken(xml.CharData(value)); err != nil {
		return err
	}
	return enc.EncodeToken(start.End())
}

// nextStart advances to the first element of the document, returning nil at
// a clean end of input.
func nextStart(dec *xml.Decoder) (*xml.StartElement, error) {
	for {
		tok, err := dec.Token()
		if err != nil {
			if errors.Is(err, io.EOF) {
				return nil, nil
			}
			return nil, err
		}
		if start, ok := tok.(xml.StartElement); ok {
			return &start, nil
		}
	}
}

// textOf consumes the element the decoder is inside of and returns its
// trimmed character data. Nested elements are skipped, not read as text.
func textOf(dec *xml.Decoder) (string, error) {
	var sb strings.Builder
	for {
		tok, err := dec.Token()
		if err != nil {
			return "", err
		}
		switch t := tok.(type) {
		case xml.CharData:
			sb.Write(t)
		case xml.StartElement:
			if err := dec.Skip(); err != nil {
				return "", err
			}
		case xml.EndElement:
			return strings.TrimSpace(sb.String()), nil
		}
	}
}

// collectRecords turns every child element of the current element into a
// Record named after its tag. Filtering is Decode's job.
func collectRecords(dec *xml.Decoder) ([]Record, error) {
	var records []Record
	for {
		tok, err := dec.Token()
		if err != nil {
			return nil, err
		}
		switch el := tok.(type) {
		case xml.StartElement:
			text, err := textOf(dec)
			if err != nil {
				return nil, err
			}
			records = append(records, Record{Tag: el.Name.Local, Value: text})
		case xml.EndElement:
			return records, nil
		}
	}
}
