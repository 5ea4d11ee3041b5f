// Package auth issues and checks stateless bearer tokens.
//
// A Codec signs an Identity (user id plus roles) into an HS256 token and
// verifies it back. An Issuer exchanges a Credential for a token through a
// CredentialRepository. On each request an Extractor turns the bearer token
// into a Session and a Guard decides, from the session's claims alone,
// whether the request passes the authentication gate and, when the endpoint
// names a role, the role gate.
//
// Nothing here keeps server-side session state. A token is valid until it
// expires; there is no revocation.
//
// Typical wiring:
//
//	key, _ := auth.NewSigningKey(secret)
//	codec, _ := auth.NewCodec(key, auth.CodecConfig{})
//	issuer, _ := auth.NewIssuer(codec, repo, auth.IssuerConfig{})
//	guard := auth.NewGuard(auth.NewExtractor(codec, auth.ExtractorConfig{}), auth.GuardConfig{})
//
//	r.With(guard.Require(auth.Role("Admin"))).Get("/api/hello", hello)
package auth
