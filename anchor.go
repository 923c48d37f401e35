package main

import (
	"errors"
	"fmt"
	"strings"
)

type Anchor string

const (
	AnchorTop    Anchor = "top"
	AnchorRight  Anchor = "right"
	AnchorBottom Anchor = "bottom"
	AnchorLeft   Anchor = "left"
)

// Anchors lists every attachment site in clockwise order from the top.
var Anchors = []Anchor{AnchorTop, AnchorRight, AnchorBottom, AnchorLeft}

var ErrUnknownAnchor = errors.New("unknown anchor")

func ParseAnchor(s string) (Anchor, error) {
	a := Anchor(strings.ToLower(strings.TrimSpace(s)))
	if !a.Valid() {
		return "", fmt.Errorf("%w: %q", ErrUnknownAnchor, s)
	}
	return a, nil
}

func (a Anchor) Valid() bool {
	switch a {
	case AnchorTop, AnchorRight, AnchorBottom, AnchorLeft:
		return true
	}
	return false
}

// Normal is the outward unit vector of the card edge the anchor sits on.
func (a Anchor) Normal() (dx, dy float64) {
	switch a {
	case AnchorRight:
		return 1, 0
	case AnchorLeft:
		return -1, 0
	case AnchorBottom:
		return 0, 1
	case AnchorTop:
		return 0, -1
	}
	return 0, 0
}

// AnchorPoint returns the world coordinate of anchor a on a card whose
// top-left corner is at p.
func AnchorPoint(p Position, a Anchor) Point {
	switch a {
	case AnchorTop:
		return Point{p.X + CardWidth/2, p.Y}
	case AnchorRight:
		return Point{p.X + CardWidth, p.Y + CardHeight/2}
	case AnchorBottom:
		return Point{p.X + CardWidth/2, p.Y + CardHeight}
	case AnchorLeft:
		return Point{p.X, p.Y + CardHeight/2}
	}
	return Point{p.X, p.Y}
}

// parseAnchorRef splits "card:anchor" as used on the command line.
func parseAnchorRef(s string) (string, Anchor, error) {
	i := strings.LastIndex(s, ":")
	if i <= 0 || i == len(s)-1 {
		return "", "", fmt.Errorf("expected CARD:ANCHOR, got %q", s)
	}
	a, err := ParseAnchor(s[i+1:])
	if err != nil {
		return "", "", err
	}
	return s[:i], a, nil
}
