// Package config loads tokenauthd configuration.
//
// A YAML file is read over Default after optional .env files are loaded into
// the environment. The signing key is never stored in the file itself; it is
// a secret reference resolved at startup:
//
//	token:
//	  signing_key: secretref:file:/run/secrets/tokenauth_signing_key
//	  lifetime: 120h
//	credentials:
//	  driver: memory
//	  options:
//	    users:
//	      - username: alice
//	        password_hash: $2a$10$...
//	        user_id: 3b241101-e2bb-4255-8caf-4136c566a962
//	        roles: [User, Admin]
package config
