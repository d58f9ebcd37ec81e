package metadata

import (
	"fmt"
	"math"
	"net/url"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/danferreira/gannounce/internal/bencode"
	"github.com/danferreira/gannounce/internal/decode"
)

// PieceHashSize is the size of one entry of Info.Pieces.
const PieceHashSize = 20

type MetaInfo struct {
	Info         Info
	Hash         Hash
	Announce     string
	CreatedBy    *string
	CreationDate *int64
	Comment      *string
	Encoding     *string
}

type Info struct {
	Mode        Mode
	Name        string
	PieceLength int64
	Pieces      []byte
	Private     *int64
}

// Mode is the file layout of a torrent: SingleFile or MultiFile.
type Mode interface {
	TotalLength() int64
	mode()
}

type SingleFile struct {
	Length int64
	MD5Sum *string
}

type MultiFile struct {
	Files []FileDesc
}

type FileDesc struct {
	Length int64
	MD5Sum *string
	Path   []string
}

func (SingleFile) mode() {}
func (MultiFile) mode()  {}

func (s SingleFile) TotalLength() int64 {
	return s.Length
}

func (m MultiFile) TotalLength() int64 {
	var total int64
	for _, file := range m.Files {
		total += file.Length
	}

	return total
}

// Parse reads and decodes the metainfo file at path.
func Parse(path string) (*MetaInfo, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, decode.IO(err)
	}

	return Decode(data)
}

// Decode builds a MetaInfo from a bencoded document.
func Decode(data []byte) (*MetaInfo, error) {
	root, err := decode.Parse(data)
	if err != nil {
		return nil, err
	}

	return FromValue(root)
}

// FromValue builds a MetaInfo from a parsed document. The info-hash is
// taken from the source bytes of the info value, so root must come from
// bencode.Parse rather than be assembled by hand.
func FromValue(root *bencode.Value) (*MetaInfo, error) {
	var (
		mi       MetaInfo
		infoNode *bencode.Value
	)

	err := decode.Struct(root,
		decode.Required("announce", &mi.Announce, decode.String),
		decode.Required("info", &infoNode, decode.Dict),
		decode.Optional("created by", &mi.CreatedBy, decode.String),
		decode.Optional("creation date", &mi.CreationDate, decode.Int64),
		decode.Optional("comment", &mi.Comment, decode.String),
		decode.Optional("encoding", &mi.Encoding, decode.String),
	)
	if err != nil {
		return nil, err
	}

	if _, err := mi.AnnounceURL(); err != nil {
		return nil, decode.Invalid("announce", "%v", err)
	}

	mi.Hash = HashInfo(infoNode)

	info, err := decodeInfo(infoNode)
	if err != nil {
		return nil, decode.At("info", err)
	}
	mi.Info = info

	return &mi, nil
}

// AnnounceURL parses the tracker address.
func (m *MetaInfo) AnnounceURL() (*url.URL, error) {
	return url.Parse(m.Announce)
}

func decodeInfo(v *bencode.Value) (Info, error) {
	var info Info

	err := decode.Struct(v,
		decode.Required("name", &info.Name, decode.String),
		decode.Required("piece length", &info.PieceLength, decode.Int64),
		decode.Required("pieces", &info.Pieces, decode.Bytes),
		decode.Optional("private", &info.Private, decode.Int64),
	)
	if err != nil {
		return Info{}, err
	}

	if info.Name != "" && !validSegment(info.Name) {
		return Info{}, decode.Invalid("name", "not a plain file name: %q", info.Name)
	}

	if info.PieceLength <= 0 {
		return Info{}, decode.Invalid("piece length", "must be positive, got %d", info.PieceLength)
	}

	if len(info.Pieces)%PieceHashSize != 0 {
		return Info{}, decode.Invalid("pieces", "length %d is not a multiple of %d", len(info.Pieces), PieceHashSize)
	}

	mode, err := decodeMode(v)
	if err != nil {
		return Info{}, err
	}
	info.Mode = mode

	return info, nil
}

// decodeMode picks the file layout. "length" wins when both "length" and
// "files" are present.
func decodeMode(v *bencode.Value) (Mode, error) {
	if v.Has("length") {
		var single SingleFile

		err := decode.Struct(v,
			decode.Required("length", &single.Length, decode.Int64),
			decode.Optional("md5sum", &single.MD5Sum, decode.String),
		)
		if err != nil {
			return nil, err
		}

		if single.Length < 0 {
			return nil, decode.Invalid("length", "must not be negative, got %d", single.Length)
		}

		return single, nil
	}

	if list, ok := v.Lookup("files"); ok {
		if err := checkFileList(list); err != nil {
			return nil, err
		}

		files, err := decode.Get(v, "files", decode.List(decodeFile))
		if err != nil {
			return nil, err
		}

		var total int64
		for i, f := range files {
			if f.Length > math.MaxInt64-total {
				return nil, decode.Invalid("files", "total length overflows at file %d", i)
			}
			total += f.Length
		}

		return MultiFile{Files: files}, nil
	}

	return nil, decode.Errorf(decode.ErrUnsupportedMode, "neither length nor files present")
}

// checkFileList rejects a "files" member that is not a non-empty list of
// dicts. Such a torrent has no usable layout.
func checkFileList(list *bencode.Value) error {
	if list.Kind != bencode.List {
		return &decode.Error{Field: "files", Kind: decode.ErrUnsupportedMode, Detail: "got " + list.Kind.String()}
	}

	if len(list.Items) == 0 {
		return &decode.Error{Field: "files", Kind: decode.ErrUnsupportedMode, Detail: "empty file list"}
	}

	for i, item := range list.Items {
		if item.Kind != bencode.Dict {
			return &decode.Error{Field: fmt.Sprintf("files[%d]", i), Kind: decode.ErrUnsupportedMode, Detail: "got " + item.Kind.String()}
		}
	}

	return nil
}

// validSegment reports whether s names a single directory entry.
func validSegment(s string) bool {
	return s != "" && s != "." && s != ".." && !strings.ContainsAny(s, `/\`)
}

func decodeFile(v *bencode.Value) (FileDesc, error) {
	var f FileDesc

	err := decode.Struct(v,
		decode.Required("length", &f.Length, decode.Int64),
		decode.Optional("md5sum", &f.MD5Sum, decode.String),
		decode.Required("path", &f.Path, decode.List(decode.String)),
	)
	if err != nil {
		return FileDesc{}, err
	}

	if f.Length < 0 {
		return FileDesc{}, decode.Invalid("length", "must not be negative, got %d", f.Length)
	}

	if len(f.Path) == 0 {
		return FileDesc{}, decode.Invalid("path", "empty path")
	}

	for i, segment := range f.Path {
		if !validSegment(segment) {
			return FileDesc{}, decode.Invalid("path", "bad segment %d: %q", i, segment)
		}
	}

	return f, nil
}

func (i *Info) TotalLength() int64 {
	if i.Mode == nil {
		return 0
	}

	return i.Mode.TotalLength()
}

func (i *Info) NumPieces() int {
	return len(i.Pieces) / PieceHashSize
}

// PieceHashes splits Pieces into one digest per piece.
func (i *Info) PieceHashes() [][PieceHashSize]byte {
	hashes := make([][PieceHashSize]byte, 0, i.NumPieces())

	for chunk := range slices.Chunk(i.Pieces, PieceHashSize) {
		var arr [PieceHashSize]byte
		copy(arr[:], chunk)
		hashes = append(hashes, arr)
	}

	return hashes
}

// Files lists the content files. A single-file torrent yields one entry
// named after the torrent.
func (i *Info) Files() []FileDesc {
	switch m := i.Mode.(type) {
	case SingleFile:
		return []FileDesc{{Length: m.Length, MD5Sum: m.MD5Sum, Path: []string{i.Name}}}
	case MultiFile:
		return m.Files
	}

	return nil
}

// IsPrivate reports whether the private flag is set to 1.
func (i *Info) IsPrivate() bool {
	return i.Private != nil && *i.Private == 1
}

// FilePath is the on-disk location of f below dir. Multi-file torrents
// place their files under a directory named after the torrent.
func (i *Info) FilePath(dir string, f FileDesc) string {
	if _, ok := i.Mode.(MultiFile); ok {
		return filepath.Join(append([]string{dir, i.Name}, f.Path...)...)
	}

	return filepath.Join(dir, i.Name)
}
