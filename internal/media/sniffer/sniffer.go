// Package sniffer identifies the image formats accepted for chat uploads
// from their leading bytes.
package sniffer

import (
	"bytes"
	"errors"
	"mime"
	"net/textproto"
	"strings"
)

// HeadSize is the number of leading bytes Detect needs.
const HeadSize = 16

var ErrUnsupported = errors.New("unsupported image type")

type Format struct {
	MIME string
	Ext  string
}

var (
	JPEG = Format{MIME: "image/jpeg", Ext: "jpg"}
	PNG  = Format{MIME: "image/png", Ext: "png"}
	GIF  = Format{MIME: "image/gif", Ext: "gif"}
	WEBP = Format{MIME: "image/webp", Ext: "webp"}
)

var pngMagic = []byte{0x89, 'P', 'N', 'G', '\r', '\n', 0x1a, '\n'}

func Detect(head []byte) (Format, error) {
	switch {
	case len(head) >= 3 && head[0] == 0xff && head[1] == 0xd8 && head[2] == 0xff:
		return JPEG, nil
	case bytes.HasPrefix(head, pngMagic):
		return PNG, nil
	case bytes.HasPrefix(head, []byte("GIF87a")) || bytes.HasPrefix(head, []byte("GIF89a")):
		return GIF, nil
	case len(head) >= 12 && bytes.Equal(head[:4], []byte("RIFF")) && bytes.Equal(head[8:12], []byte("WEBP")):
		return WEBP, nil
	}
	return Format{}, ErrUnsupported
}

// DeclaredMIME returns the media type of a multipart part header, lower
// cased and without parameters. image/jpg is folded into image/jpeg.
func DeclaredMIME(header textproto.MIMEHeader) string {
	raw := header.Get("Content-Type")
	if raw == "" {
		return ""
	}
	mediaType, _, err := mime.ParseMediaType(raw)
	if err != nil {
		mediaType = strings.TrimSpace(strings.SplitN(raw, ";", 2)[0])
	}
	mediaType = strings.ToLower(mediaType)
	if mediaType == "image/jpg" {
		return JPEG.MIME
	}
	return mediaType
}
