// Package secret resolves configuration values that must not live in plain
// config files, most importantly the token signing key.
//
// Values may reference environment variables (${VAR}, see ExpandEnvStrict)
// and provider-backed secrets:
//
//	signing_key: secretref:env:TOKENAUTH_SIGNING_KEY
//	signing_key: secretref:file:/run/secrets/signing_key
//	signing_key: secretref:dotenv:SIGNING_KEY
//
// Providers are created by name through a Registry; DefaultRegistry carries
// env, file and dotenv.
package secret
