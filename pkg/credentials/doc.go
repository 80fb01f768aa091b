// Package credentials stores the graph API and geocoder keys outside the
// config file. Lookups walk the system keyring, then an encrypted file under
// the user config directory, then FRIENDGEO_* environment variables.
package credentials
