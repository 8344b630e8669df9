package domain

// TokenKind distinguishes the two token flavours issued by the service.
type TokenKind string

const (
	TokenKindAccess  TokenKind = "access"
	TokenKindRefresh TokenKind = "refresh"
)

// TokenPair bundles the credentials returned by login, verification,
// session exchange, and refresh.
type TokenPair struct {
	AccessToken      string
	RefreshToken     string
	AccessExpiresIn  int
	RefreshExpiresIn int
}
