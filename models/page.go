package models

import "fmt"

// TokenKind kind of pagination token
type TokenKind int

const (
	TokenNone TokenKind = iota
	TokenOffset
	TokenCursor
)

func (k TokenKind) String() string {
	switch k {
	case TokenOffset:
		return "offset"
	case TokenCursor:
		return "cursor"
	}

	return "none"
}

// PaginationToken Offset(uint64) | Cursor(int64) | None
type PaginationToken struct {
	kind   TokenKind
	offset uint64
	cursor int64
}

// NoToken first page / exhausted feed
func NoToken() PaginationToken {
	return PaginationToken{}
}

// Offset position in a ranked result
func Offset(n uint64) PaginationToken {
	return PaginationToken{kind: TokenOffset, offset: n}
}

// Cursor exclusive upper created_at bound
func Cursor(ts int64) PaginationToken {
	return PaginationToken{kind: TokenCursor, cursor: ts}
}

func (t PaginationToken) Kind() TokenKind {
	return t.kind
}

func (t PaginationToken) IsNone() bool {
	return t.kind == TokenNone
}

// Offset value, ok=false when token is not an offset
func (t PaginationToken) Offset() (uint64, bool) {
	return t.offset, t.kind == TokenOffset
}

// Cursor value, ok=false when token is not a cursor
func (t PaginationToken) Cursor() (int64, bool) {
	return t.cursor, t.kind == TokenCursor
}

func (t PaginationToken) String() string {
	switch t.kind {
	case TokenOffset:
		return fmt.Sprintf("offset:%d", t.offset)
	case TokenCursor:
		return fmt.Sprintf("cursor:%d", t.cursor)
	}

	return "none"
}

// Page page of videos
type Page struct {
	Videos []*VideoRecord  `json:"videos"`
	Next   PaginationToken `json:"-"`
}

// NewEmptyPage empty page with no next token
func NewEmptyPage() *Page {
	return &Page{Videos: []*VideoRecord{}}
}

// HasMore has next page
func (p *Page) HasMore() bool {
	return !p.Next.IsNone()
}
