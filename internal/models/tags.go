package models

import (
	"errors"
	"strings"
	"unicode/utf8"
)

const (
	MaxTagsPerItem = 10
	MaxTagLength   = 40
)

var (
	ErrTooManyTags = errors.New("too many tags")
	ErrTagTooLong  = errors.New("tag too long")
)

// TagSet is a bounded, normalized, duplicate-free list of tags.
type TagSet []string

// NormalizeTag folds case and whitespace so "Dance-Floor" and "dance-floor "
// are the same facet value.
func NormalizeTag(raw string) string {
	return strings.ToLower(strings.Join(strings.Fields(raw), " "))
}

// NormalizeUploaderName trims and collapses whitespace but keeps case.
func NormalizeUploaderName(raw string) string {
	return strings.Join(strings.Fields(raw), " ")
}

// NewTagSet normalizes raw tags, drops empties and merges duplicates while
// keeping first-seen order.
func NewTagSet(raw []string) (TagSet, error) {
	set := make(TagSet, 0, len(raw))
	seen := make(map[string]struct{}, len(raw))
	for _, r := range raw {
		tag := NormalizeTag(r)
		if tag == "" {
			continue
		}
		if utf8.RuneCountInString(tag) > MaxTagLength {
			return nil, ErrTagTooLong
		}
		if _, ok := seen[tag]; ok {
			continue
		}
		seen[tag] = struct{}{}
		set = append(set, tag)
	}
	if len(set) > MaxTagsPerItem {
		return nil, ErrTooManyTags
	}
	return set, nil
}

// Normalized re-applies normalization to a stored set. Rows written by older
// code may predate the current folding rules.
func (t TagSet) Normalized() TagSet {
	out := make(TagSet, 0, len(t))
	seen := make(map[string]struct{}, len(t))
	for _, r := range t {
		tag := NormalizeTag(r)
		if tag == "" {
			continue
		}
		if _, ok := seen[tag]; ok {
			continue
		}
		seen[tag] = struct{}{}
		out = append(out, tag)
	}
	return out
}

func (t TagSet) Contains(tag string) bool {
	tag = NormalizeTag(tag)
	for _, v := range t {
		if v == tag {
			return true
		}
	}
	return false
}
