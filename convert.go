// PowerSNMPv3 - SNMP library for Go
// Author: Volkov Oleg, PowerC LLC
// License: MIT (commercial version with support available)
package snmpmgr

import "strconv"

// wellKnownOIDNames maps a handful of frequently-seen MIB-II OIDs to
// their symbolic names, for human-readable logging/CLI output. It is
// intentionally small — this library doesn't ship a MIB parser.
var wellKnownOIDNames = map[string]string{
	"1.3.6.1.2.1.1.1.0": "sysDescr.0",
	"1.3.6.1.2.1.1.2.0": "sysObjectID.0",
	"1.3.6.1.2.1.1.3.0": "sysUpTime.0",
	"1.3.6.1.2.1.1.4.0": "sysContact.0",
	"1.3.6.1.2.1.1.5.0": "sysName.0",
	"1.3.6.1.2.1.1.6.0": "sysLocation.0",
	"1.3.6.1.2.1.1.7.0": "sysServices.0",
	"1.3.6.1.2.1.2.1.0": "ifNumber.0",
	"1.3.6.1.6.3.1.1.4.1.0": "snmpTrapOID.0",
}

// NameForOID returns a symbolic name for oid if it's one of the handful
// of well-known MIB-II identifiers this library recognizes, or oid's dotted
// string form otherwise.
func NameForOID(oid Oid) string {
	if name, ok := wellKnownOIDNames[oid.String()]; ok {
		return name
	}
	return oid.String()
}

// FormatVarBind renders a Vb as "name = type: value", the conventional
// one-line form used by command-line SNMP tools.
func FormatVarBind(vb Vb) string {
	return NameForOID(vb.OID) + " = " + vb.Value.TypeName() + ": " + vb.Value.String()
}

// FormatVarBindList renders each Vb in l on its own line.
func FormatVarBindList(l VbList) string {
	out := make([]byte, 0, len(l)*32)
	for i, vb := range l {
		if i > 0 {
			out = append(out, '\n')
		}
		out = append(out, FormatVarBind(vb)...)
	}
	return string(out)
}

// ParseIndex splits a table-entry OID into its column base and the
// instance index, given the length of the column OID (e.g. ifDescr is
// 1.3.6.1.2.1.2.2.1.2, 10 elements long; an ifDescr.3 instance OID has
// one extra trailing element, the ifIndex value).
func ParseIndex(instanceOID Oid, columnLen int) ([]uint32, error) {
	if len(instanceOID) <= columnLen {
		return nil, newDecodeError("parse-index", errLengthMismatch)
	}
	return append([]uint32(nil), instanceOID[columnLen:]...), nil
}

// FormatIndex renders an index (as returned by ParseIndex) back into
// its dotted-decimal suffix form.
func FormatIndex(index []uint32) string {
	out := ""
	for i, v := range index {
		if i > 0 {
			out += "."
		}
		out += strconv.FormatUint(uint64(v), 10)
	}
	return out
}
