package acl

// Principal is the identity a permission decision is requested for. The
// engine only ever asks two questions of it: is it authenticated at all, and
// if so, does it carry a provider identity (see Identified).
type Principal interface {
	IsAuthenticated() bool
}

// Identified is the extended identity carried by principals whose account
// comes from the CI server's configured identity provider. Classification
// treats an authenticated principal without it as a plain logged-in user:
// only Identified principals can ever reach the Admin role.
type Identified interface {
	Principal
	Username() string
}

// Anonymous is the unauthenticated principal.
type Anonymous struct{}

func (Anonymous) IsAuthenticated() bool { return false }

// Authenticated is a logged-in principal with no provider identity, such as
// a build token or a locally configured service account.
type Authenticated struct{}

func (Authenticated) IsAuthenticated() bool { return true }

// User is a logged-in principal identified by its provider username.
type User struct {
	Name string
}

func (User) IsAuthenticated() bool { return true }

func (u User) Username() string { return u.Name }
