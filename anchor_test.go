package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAnchorPoint(t *testing.T) {
	p := Position{X: 10, Y: 20}
	assert.Equal(t, Point{160, 20}, AnchorPoint(p, AnchorTop))
	assert.Equal(t, Point{310, 120}, AnchorPoint(p, AnchorRight))
	assert.Equal(t, Point{160, 220}, AnchorPoint(p, AnchorBottom))
	assert.Equal(t, Point{10, 120}, AnchorPoint(p, AnchorLeft))
}

func TestParseAnchor(t *testing.T) {
	a, err := ParseAnchor(" Right ")
	require.NoError(t, err)
	assert.Equal(t, AnchorRight, a)

	_, err = ParseAnchor("center")
	assert.ErrorIs(t, err, ErrUnknownAnchor)
}

func TestParseAnchorRef(t *testing.T) {
	tests := []struct {
		in      string
		card    string
		anchor  Anchor
		wantErr bool
	}{
		{in: "abc:top", card: "abc", anchor: AnchorTop},
		{in: "a:b:left", card: "a:b", anchor: AnchorLeft},
		{in: "abc", wantErr: true},
		{in: ":top", wantErr: true},
		{in: "abc:", wantErr: true},
		{in: "abc:diagonal", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			card, anchor, err := parseAnchorRef(tt.in)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.card, card)
			assert.Equal(t, tt.anchor, anchor)
		})
	}
}

func TestAnchorNormalsPointOutward(t *testing.T) {
	center := Point{CardWidth / 2, CardHeight / 2}
	for _, a := range Anchors {
		p := AnchorPoint(Position{}, a)
		dx, dy := a.Normal()
		// moving along the normal takes the point further from the centre
		before := (p.X-center.X)*(p.X-center.X) + (p.Y-center.Y)*(p.Y-center.Y)
		q := Point{p.X + dx, p.Y + dy}
		after := (q.X-center.X)*(q.X-center.X) + (q.Y-center.Y)*(q.Y-center.Y)
		assert.Greater(t, after, before, string(a))
	}
}

func TestConnectionEquivalent(t *testing.T) {
	c := Connection{StartCard: "a", EndCard: "b", StartAnchor: AnchorRight, EndAnchor: AnchorLeft}
	assert.True(t, c.Equivalent(c))
	assert.True(t, c.Equivalent(Connection{StartCard: "b", EndCard: "a", StartAnchor: AnchorLeft, EndAnchor: AnchorRight}))
	assert.False(t, c.Equivalent(Connection{StartCard: "a", EndCard: "b", StartAnchor: AnchorBottom, EndAnchor: AnchorLeft}))
	assert.False(t, c.Equivalent(Connection{StartCard: "b", EndCard: "a", StartAnchor: AnchorRight, EndAnchor: AnchorLeft}))
}
