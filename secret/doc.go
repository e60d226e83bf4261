// Package secret resolves configuration values that reference environment
// variables or secrets.
//
// Values go through strict environment expansion first (see
// ExpandEnvStrict), then every secret reference is replaced by the value a
// Provider returns for it. A reference has the form
//
//	secretref:<provider>:<ref>
//
// and may be the whole value or appear inline:
//
//	Authorization: Bearer secretref:file:billing/token
//	X-API-Key:     secretref:env:BILLING_API_KEY
//
// EnvProvider, FileProvider and MapProvider are built in. Providers can be
// created by name from configuration through a Registry.
package secret
