package report

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
	"gvisor.dev/gvisor/pkg/tcpip"

	"github.com/danmuck/optwire/internal/protocol/dhcp"
	"github.com/danmuck/optwire/internal/protocol/dhcpv6"
	"github.com/danmuck/optwire/internal/protocol/options"
	"github.com/danmuck/optwire/internal/protocol/view"
	"github.com/danmuck/optwire/internal/testutil/testlog"
)

func TestFromRecords(t *testing.T) {
	testlog.Start(t)
	views := FromRecords([]options.Record{
		options.NewAddressList(dhcp.OptRouter, []tcpip.Address{tcpip.AddrFrom4([4]byte{10, 0, 0, 1})}),
		options.NewSingleField(dhcp.OptHostName, []byte("edge-1")),
		options.NewRaw(250, []byte{0x00, 0xff}),
		options.NewMarker(dhcp.OptEnd),
	})
	require.Equal(t, []Record{
		{Code: 3, Kind: "address_list", Addresses: []string{"10.0.0.1"}},
		{Code: 12, Kind: "single_field", Data: "656467652d31", Text: "edge-1"},
		{Code: 250, Kind: "raw", Data: "00ff"},
		{Code: 255, Kind: "marker"},
	}, views)
}

func TestToRecordsRoundTripsThroughEncoder(t *testing.T) {
	testlog.Start(t)
	recs, err := ToRecords(dhcp.Family, []Record{
		{Code: 49, Kind: "address_list", Addresses: []string{"10.1.1.1", " 10.1.1.2"}},
		{Code: 12, Kind: "single_field", Text: "node"},
		{Code: 200, Kind: "raw", Data: "beef"},
		{Code: 255, Kind: "marker"},
	})
	require.NoError(t, err)
	out, err := options.Encode(dhcp.Family, recs)
	require.NoError(t, err)
	require.Equal(t, []byte{49, 8, 10, 1, 1, 1, 10, 1, 1, 2, 12, 4, 'n', 'o', 'd', 'e', 200, 2, 0xbe, 0xef, 255}, out)
}

func TestToRecordsRejectsBadInput(t *testing.T) {
	testlog.Start(t)
	cases := []Record{
		{Code: 3, Kind: "address_list", Addresses: []string{"2001:db8::1"}},
		{Code: 3, Kind: "address_list", Addresses: []string{"not-an-ip"}},
		{Code: 12, Kind: "single_field", Data: "zz"},
		{Code: 12, Kind: "tree"},
	}
	for _, c := range cases {
		_, err := ToRecords(dhcp.Family, []Record{c})
		require.True(t, errors.Is(err, ErrBadRecord), "%+v: %v", c, err)
	}
}

func TestParseAddressV6(t *testing.T) {
	testlog.Start(t)
	a, err := ParseAddress(dhcpv6.Family, "2001:db8::53")
	require.NoError(t, err)
	require.Equal(t, 16, a.Len())
	_, err = ParseAddress(dhcpv6.Family, "192.0.2.1")
	require.Error(t, err)
}

func TestFaultOf(t *testing.T) {
	testlog.Start(t)
	f, ok := FaultOf(&options.DecodeError{Kind: options.FaultInvalidPayload, Offset: 4, Code: 49, HasCode: true, Detail: "x"})
	require.True(t, ok)
	require.Equal(t, "invalid_payload", f.Kind)
	require.NotNil(t, f.Code)
	require.Equal(t, uint16(49), *f.Code)

	_, ok = FaultOf(errors.New("plain"))
	require.False(t, ok)
}

func TestCodesDescribeShapes(t *testing.T) {
	testlog.Start(t)
	reg := options.NewRegistry()
	require.NoError(t, dhcp.Register(reg))
	require.NoError(t, reg.Register(dhcp.Family, 200, options.FactoryFunc(func(code options.Code, payload view.View) (options.Record, error) {
		return options.NewRaw(code, payload.Copy()), nil
	})))

	codes := Codes(reg, dhcp.Family)
	require.Equal(t, Code{Code: 1, Shape: "single_field", MinLen: 4, MaxLen: 4}, codes[0])
	require.Equal(t, Code{Code: 3, Shape: "address_list", Width: 4}, codes[1])
	require.Equal(t, Code{Code: 200, Shape: "custom"}, codes[len(codes)-1])

	fams := Families(reg)
	require.Len(t, fams, 1)
	require.Equal(t, "dhcpv4", fams[0].ID)
	require.Equal(t, []uint16{0, 255}, fams[0].Markers)
	require.Equal(t, len(codes), fams[0].Codes)
}
