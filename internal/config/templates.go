package config

import (
	"fmt"
	"os"
)

// Template is a commented starting point for config.toml.
const Template = `name = "optwire"
listen = "127.0.0.1:9670"

# 0 disables a limit.
max_records = 4096
max_region_bytes = 65536

pcap_ports = [67, 68]

# Extra option types. shape is one of address_list, single_field, raw.
[[option]]
family = "dhcpv4"
code = 224
name = "site-local-id"
shape = "single_field"
min_len = 1
max_len = 32

[[option]]
family = "dhcpv4"
code = 225
name = "site-local-relays"
shape = "address_list"
`

func WriteTemplate(path string, overwrite bool) error {
	if !overwrite {
		if _, err := os.Stat(path); err == nil {
			return fmt.Errorf("config already exists: %s", path)
		}
	}
	return os.WriteFile(path, []byte(Template), 0o600)
}
