// Package dhcp defines the DHCPv4 option family (RFC 2132) and its builtin
// option types.
package dhcp

import (
	"errors"
	"fmt"

	"gvisor.dev/gvisor/pkg/tcpip"
	"gvisor.dev/gvisor/pkg/tcpip/header"

	"github.com/danmuck/optwire/internal/protocol/options"
	"github.com/danmuck/optwire/internal/protocol/view"
)

// Option codes from RFC 2132 and its successors.
const (
	OptPad                    options.Code = 0
	OptSubnetMask             options.Code = 1
	OptRouter                 options.Code = 3
	OptTimeServer             options.Code = 4
	OptNameServer             options.Code = 5
	OptDomainNameServer       options.Code = 6
	OptLogServer              options.Code = 7
	OptCookieServer           options.Code = 8
	OptLPRServer              options.Code = 9
	OptImpressServer          options.Code = 10
	OptResourceLocationServer options.Code = 11
	OptHostName               options.Code = 12
	OptMeritDumpFile          options.Code = 14
	OptDomainName             options.Code = 15
	OptSwapServer             options.Code = 16
	OptRootPath               options.Code = 17
	OptExtensionsPath         options.Code = 18
	OptBroadcastAddress       options.Code = 28
	OptRouterSolicitation     options.Code = 32
	OptNISDomain              options.Code = 40
	OptNISServers             options.Code = 41
	OptNTPServers             options.Code = 42
	OptNetBIOSNameServer      options.Code = 44
	OptNetBIOSDatagramServer  options.Code = 45
	OptXWindowFontServer      options.Code = 48
	OptXWindowDisplayManager  options.Code = 49
	OptRequestedIPAddress     options.Code = 50
	OptMessageType            options.Code = 53
	OptServerIdentifier       options.Code = 54
	OptMessage                options.Code = 56
	OptVendorClassIdentifier  options.Code = 60
	OptClientIdentifier       options.Code = 61
	OptNISPlusServers         options.Code = 65
	OptTFTPServerName         options.Code = 66
	OptBootfileName           options.Code = 67
	OptMobileIPHomeAgent      options.Code = 68
	OptSMTPServer             options.Code = 69
	OptPOP3Server             options.Code = 70
	OptNNTPServer             options.Code = 71
	OptWWWServer              options.Code = 72
	OptFingerServer           options.Code = 73
	OptIRCServer              options.Code = 74
	OptStreetTalkServer       options.Code = 75
	OptSTDAServer             options.Code = 76
	OptEnd                    options.Code = 255
)

// Family is the DHCPv4 options space: one-byte codes and lengths, IPv4
// addresses, Pad and End carried without a length byte.
var Family = options.Family{
	ID:           "dhcpv4",
	CodeWidth:    1,
	LengthWidth:  1,
	AddressWidth: header.IPv4AddressSize,
	Markers:      []options.Code{OptPad, OptEnd},
}

var ErrWrongOption = errors.New("dhcp: wrong option")

var (
	addressList      = options.AddressListFactory{Width: header.IPv4AddressSize}
	addressListEmpty = options.AddressListFactory{Width: header.IPv4AddressSize, AllowEmpty: true}
	singleAddress    = options.SingleFieldFactory{MinLen: header.IPv4AddressSize, MaxLen: header.IPv4AddressSize}
	text             = options.SingleFieldFactory{MinLen: 1, MaxLen: 255}
	octet            = options.SingleFieldFactory{MinLen: 1, MaxLen: 1}
	clientID         = options.SingleFieldFactory{MinLen: 2, MaxLen: 255}
)

// Entries lists the builtin DHCPv4 registrations.
func Entries() []options.Entry {
	bind := func(code options.Code, f options.Factory) options.Entry {
		return options.Entry{Family: Family, Code: code, Factory: f}
	}
	return []options.Entry{
		bind(OptSubnetMask, singleAddress),
		bind(OptRouter, addressList),
		bind(OptTimeServer, addressList),
		bind(OptNameServer, addressList),
		bind(OptDomainNameServer, addressList),
		bind(OptLogServer, addressList),
		bind(OptCookieServer, addressList),
		bind(OptLPRServer, addressList),
		bind(OptImpressServer, addressList),
		bind(OptResourceLocationServer, addressList),
		bind(OptHostName, text),
		bind(OptMeritDumpFile, text),
		bind(OptDomainName, text),
		bind(OptSwapServer, singleAddress),
		bind(OptRootPath, text),
		bind(OptExtensionsPath, text),
		bind(OptBroadcastAddress, singleAddress),
		bind(OptRouterSolicitation, singleAddress),
		bind(OptNISDomain, text),
		bind(OptNISServers, addressList),
		bind(OptNTPServers, addressList),
		bind(OptNetBIOSNameServer, addressList),
		bind(OptNetBIOSDatagramServer, addressList),
		bind(OptXWindowFontServer, addressList),
		bind(OptXWindowDisplayManager, addressList),
		bind(OptRequestedIPAddress, singleAddress),
		bind(OptMessageType, octet),
		bind(OptServerIdentifier, singleAddress),
		bind(OptMessage, text),
		bind(OptVendorClassIdentifier, text),
		bind(OptClientIdentifier, clientID),
		bind(OptNISPlusServers, addressList),
		bind(OptTFTPServerName, text),
		bind(OptBootfileName, text),
		// RFC 2132 9.11: zero or more home agents.
		bind(OptMobileIPHomeAgent, addressListEmpty),
		bind(OptSMTPServer, addressList),
		bind(OptPOP3Server, addressList),
		bind(OptNNTPServer, addressList),
		bind(OptWWWServer, addressList),
		bind(OptFingerServer, addressList),
		bind(OptIRCServer, addressList),
		bind(OptStreetTalkServer, addressList),
		bind(OptSTDAServer, addressList),
	}
}

func Register(reg *options.Registry) error {
	return reg.RegisterAll(Entries())
}

// NewXWindowDisplayManager builds option 49 through the same validation the
// decoder applies.
func NewXWindowDisplayManager(addrs []tcpip.Address) (options.Record, error) {
	return newAddressList(OptXWindowDisplayManager, addrs)
}

// XWindowDisplayManagers returns the display managers carried by rec.
func XWindowDisplayManagers(rec options.Record) ([]tcpip.Address, error) {
	if rec.Code != OptXWindowDisplayManager || rec.Kind != options.KindAddressList {
		return nil, fmt.Errorf("%w: code %d kind %s", ErrWrongOption, rec.Code, rec.Kind)
	}
	return rec.Addresses, nil
}

func newAddressList(code options.Code, addrs []tcpip.Address) (options.Record, error) {
	buf := make([]byte, 0, len(addrs)*header.IPv4AddressSize)
	for _, a := range addrs {
		if a.Len() != header.IPv4AddressSize {
			return options.Record{}, fmt.Errorf("dhcp: option %d: %s is not an IPv4 address", code, a)
		}
		buf = append(buf, a.AsSlice()...)
	}
	if len(buf) > Family.MaxLength() {
		return options.Record{}, fmt.Errorf("dhcp: option %d: %d addresses exceed the length field", code, len(addrs))
	}
	rec, err := addressList.Decode(code, view.New(buf))
	if err != nil {
		return options.Record{}, fmt.Errorf("dhcp: option %d: %w", code, err)
	}
	return rec, nil
}
