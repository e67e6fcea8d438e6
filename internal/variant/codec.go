package variant

// Base is the smallest synthetic variant id. It doubles as the historical
// "no combination" sentinel: anything at or below it decodes to the first
// room and first VAT entry.
const Base int64 = 1011

// MaxVATEntries is the largest VAT dimension the codec can address. The
// VAT index occupies the final decimal digit of the id, so a tenth entry
// would collide with the next room.
const MaxVATEntries = 9

// selectionBase offsets ids resolved from summed attribute selections.
const selectionBase int64 = 1000

// Encode packs a room index and a VAT index into a variant id.
func Encode(room, vat int) int64 {
	return Base + 10*int64(room) + int64(vat)
}

// Normalize maps legacy sentinel and out-of-range ids onto the first
// variant. Normalization is idempotent.
func Normalize(id int64) int64 {
	if id < Base {
		return Base
	}
	return id
}

// DecodeRoom extracts the room index from a variant id.
func DecodeRoom(id int64) int {
	id = Normalize(id)
	return int((id - id%10 - (Base - 1)) / 10)
}

// DecodeVat extracts the VAT index from a variant id.
func DecodeVat(id int64) int {
	return int(Normalize(id)%10) - 1
}

// Decode splits a variant id into its room and VAT indexes.
func Decode(id int64) (room, vat int) {
	return DecodeRoom(id), DecodeVat(id)
}

// RoomAttributeID returns the attribute-local id for a room index.
func RoomAttributeID(room int) int64 {
	return 10 * int64(room+1)
}

// VatAttributeID returns the attribute-local id for a VAT index.
func VatAttributeID(vat int) int64 {
	return int64(vat + 1)
}

// ResolveBySelection derives a variant id from a set of selected
// attribute-local ids by summing them over a fixed offset. This is a
// distinct id space from Encode, preserved for the selection endpoint
// that historically used it.
func ResolveBySelection(attributeIDs []int64) int64 {
	id := selectionBase
	for _, attr := range attributeIDs {
		id += attr
	}
	return id
}
