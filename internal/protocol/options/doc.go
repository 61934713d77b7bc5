// Package options owns the type-length-value option codec.
//
// Ownership boundary:
// - option families (code and length field widths, marker codes)
// - the (family, code) -> factory registry
// - the walker that turns an option region into records
// - the encoder that turns records back into identical wire bytes
//
// Protocol meaning of individual options lives in the family packages
// (dhcp, dhcpv6, mobility); this package only checks structure.
package options
