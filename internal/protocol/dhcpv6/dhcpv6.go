// Package dhcpv6 defines the DHCPv6 option family (RFC 8415): two-byte codes
// and two-byte lengths.
package dhcpv6

import (
	"gvisor.dev/gvisor/pkg/tcpip/header"

	"github.com/danmuck/optwire/internal/protocol/options"
)

const (
	OptClientID           options.Code = 1
	OptServerID           options.Code = 2
	OptPreference         options.Code = 7
	OptElapsedTime        options.Code = 8
	OptUnicast            options.Code = 12
	OptSIPServerAddresses options.Code = 22
	OptDNSServers         options.Code = 23
	OptNISServers         options.Code = 27
	OptNISPServers        options.Code = 28
	OptSNTPServers        options.Code = 31
	OptBCMCSAddresses     options.Code = 34
	OptNTPServer          options.Code = 56
)

var Family = options.Family{
	ID:           "dhcpv6",
	CodeWidth:    2,
	LengthWidth:  2,
	AddressWidth: header.IPv6AddressSize,
}

var (
	addressList = options.AddressListFactory{Width: header.IPv6AddressSize}
	// DUID: two-byte type plus at most 128 bytes of identifier (RFC 8415 11.1).
	duid = options.SingleFieldFactory{MinLen: 3, MaxLen: 130}
)

func Entries() []options.Entry {
	bind := func(code options.Code, f options.Factory) options.Entry {
		return options.Entry{Family: Family, Code: code, Factory: f}
	}
	return []options.Entry{
		bind(OptClientID, duid),
		bind(OptServerID, duid),
		bind(OptPreference, options.SingleFieldFactory{MinLen: 1, MaxLen: 1}),
		bind(OptElapsedTime, options.SingleFieldFactory{MinLen: 2, MaxLen: 2}),
		bind(OptUnicast, options.SingleFieldFactory{MinLen: header.IPv6AddressSize, MaxLen: header.IPv6AddressSize}),
		bind(OptSIPServerAddresses, addressList),
		bind(OptDNSServers, addressList),
		bind(OptNISServers, addressList),
		bind(OptNISPServers, addressList),
		bind(OptSNTPServers, addressList),
		bind(OptBCMCSAddresses, addressList),
		// NTP suboptions are TLVs of their own; kept opaque here.
		bind(OptNTPServer, options.RawFactory{}),
	}
}

func Register(reg *options.Registry) error {
	return reg.RegisterAll(Entries())
}
