package umcf

import (
	"encoding/json"
	"reflect"
	"strings"
)

// Members the typed structs do not model are kept in an Extra map on decode and
// written back on encode, so a read/write cycle never drops curriculum content.

var (
	documentFields   = jsonFieldNames(Document{})
	nodeFields       = jsonFieldNames(ContentNode{})
	objectiveFields  = jsonFieldNames(LearningObjective{})
	segmentFields    = jsonFieldNames(TranscriptSegment{})
	mediaAssetFields = jsonFieldNames(MediaAsset{})
)

func jsonFieldNames(v any) map[string]bool {
	t := reflect.TypeOf(v)
	names := make(map[string]bool, t.NumField())
	for i := 0; i < t.NumField(); i++ {
		name, _, _ := strings.Cut(t.Field(i).Tag.Get("json"), ",")
		if name != "" && name != "-" {
			names[name] = true
		}
	}
	return names
}

// unknownMembers returns the members of the JSON object data whose keys are not in known.
func unknownMembers(data []byte, known map[string]bool) (map[string]json.RawMessage, error) {
	var all map[string]json.RawMessage
	if err := json.Unmarshal(data, &all); err != nil {
		return nil, err
	}
	for k := range all {
		if known[k] {
			delete(all, k)
		}
	}
	if len(all) == 0 {
		return nil, nil
	}
	return all, nil
}

// withUnknownMembers adds extra to the encoded object data. Keys the struct
// models always win over Extra entries of the same name.
func withUnknownMembers(data []byte, extra map[string]json.RawMessage, known map[string]bool) ([]byte, error) {
	if len(extra) == 0 {
		return data, nil
	}
	var all map[string]json.RawMessage
	if err := json.Unmarshal(data, &all); err != nil {
		return nil, err
	}
	for k, v := range extra {
		if known[k] {
			continue
		}
		all[k] = v
	}
	return json.Marshal(all)
}

// UnmarshalJSON decodes a document, keeping unmodelled members in Extra.
func (d *Document) UnmarshalJSON(data []byte) error {
	type plain Document
	var p plain
	if err := json.Unmarshal(data, &p); err != nil {
		return err
	}
	extra, err := unknownMembers(data, documentFields)
	if err != nil {
		return err
	}
	p.Extra = extra
	*d = Document(p)
	return nil
}

// MarshalJSON encodes a document including its Extra members.
func (d Document) MarshalJSON() ([]byte, error) {
	type plain Document
	data, err := json.Marshal(plain(d))
	if err != nil {
		return nil, err
	}
	return withUnknownMembers(data, d.Extra, documentFields)
}

// UnmarshalJSON decodes a content node, keeping unmodelled members in Extra.
func (n *ContentNode) UnmarshalJSON(data []byte) error {
	type plain ContentNode
	var p plain
	if err := json.Unmarshal(data, &p); err != nil {
		return err
	}
	extra, err := unknownMembers(data, nodeFields)
	if err != nil {
		return err
	}
	p.Extra = extra
	*n = ContentNode(p)
	return nil
}

// MarshalJSON encodes a content node including its Extra members.
func (n ContentNode) MarshalJSON() ([]byte, error) {
	type plain ContentNode
	data, err := json.Marshal(plain(n))
	if err != nil {
		return nil, err
	}
	return withUnknownMembers(data, n.Extra, nodeFields)
}

// MarshalJSON encodes an objective including its Extra members.
func (o LearningObjective) MarshalJSON() ([]byte, error) {
	type plain LearningObjective
	data, err := json.Marshal(plain(o))
	if err != nil {
		return nil, err
	}
	return withUnknownMembers(data, o.Extra, objectiveFields)
}

func (s *TranscriptSegment) UnmarshalJSON(data []byte) error {
	type plain TranscriptSegment
	var p plain
	if err := json.Unmarshal(data, &p); err != nil {
		return err
	}
	extra, err := unknownMembers(data, segmentFields)
	if err != nil {
		return err
	}
	p.Extra = extra
	*s = TranscriptSegment(p)
	return nil
}

func (s TranscriptSegment) MarshalJSON() ([]byte, error) {
	type plain TranscriptSegment
	data, err := json.Marshal(plain(s))
	if err != nil {
		return nil, err
	}
	return withUnknownMembers(data, s.Extra, segmentFields)
}

func (a *MediaAsset) UnmarshalJSON(data []byte) error {
	type plain MediaAsset
	var p plain
	if err := json.Unmarshal(data, &p); err != nil {
		return err
	}
	extra, err := unknownMembers(data, mediaAssetFields)
	if err != nil {
		return err
	}
	p.Extra = extra
	*a = MediaAsset(p)
	return nil
}

func (a MediaAsset) MarshalJSON() ([]byte, error) {
	type plain MediaAsset
	data, err := json.Marshal(plain(a))
	if err != nil {
		return nil, err
	}
	return withUnknownMembers(data, a.Extra, mediaAssetFields)
}
