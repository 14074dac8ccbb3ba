package container

// SourceDesc is the payload of a SOURCE_DESC entry: source_id:u32,
// version:u32, plugin:string, name:string.
type SourceDesc struct {
	SourceID uint32
	Version  uint32
	Plugin   string
	Name     string
}

// Encode renders a SourceDesc to its wire form.
func (d SourceDesc) Encode() []byte {
	buf := make([]byte, 0, 8+len(d.Plugin)+len(d.Name)+6)
	buf = appendU32(buf, d.SourceID)
	buf = appendU32(buf, d.Version)
	buf = AppendString(buf, d.Plugin)
	buf = AppendString(buf, d.Name)
	return buf
}

// DecodeSourceDesc parses a SOURCE_DESC payload.
func DecodeSourceDesc(payload []byte) (SourceDesc, error) {
	var d SourceDesc
	if len(payload) < 8 {
		return d, formatErr("DecodeSourceDesc", "truncated source desc header")
	}
	d.SourceID = readU32(payload[0:4])
	d.Version = readU32(payload[4:8])
	off := 8
	plugin, n, err := DecodeString(payload[off:])
	if err != nil {
		return d, err
	}
	d.Plugin = plugin
	off += n
	name, n, err := DecodeString(payload[off:])
	if err != nil {
		return d, err
	}
	d.Name = name
	return d, nil
}

// FullName is the (plugin, plugin+"-"+name) disambiguation key used when
// one source is re-registered with a changed descriptor mid-file (§3).
func (d SourceDesc) FullName() string {
	return d.Plugin + "-" + d.Name
}
