// Package auth guards the admin API with HS256-signed bearer tokens.
package auth
