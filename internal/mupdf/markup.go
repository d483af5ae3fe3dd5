package mupdf

import (
	"encoding/base64"
	"errors"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/rs/zerolog"

	"github.com/local/llmarxiv/internal/filetype"
)

// ImagesFromMarkup lists the <img> markers of page HTML in document order.
// Markers whose source cannot be decoded still yield an entry with no data so
// that images and markers stay aligned.
func ImagesFromMarkup(html string) ([]RawImage, error) {
	return imagesFromMarkup(html, zerolog.Nop())
}

func imagesFromMarkup(html string, log zerolog.Logger) ([]RawImage, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, err
	}
	var images []RawImage
	doc.Find("img").Each(func(i int, s *goquery.Selection) {
		img := RawImage{Index: i + 1}
		src, _ := s.Attr("src")
		data, mediaType, err := DecodeDataURI(src)
		if err != nil {
			log.Debug().Err(err).Int("image", i+1).Msg("unreadable image source")
		} else {
			img.Data = data
			img.Format = filetype.ExtensionForMIME(mediaType)
			if img.Format == "" {
				img.Format = filetype.ImageExtension(data)
			}
		}
		images = append(images, img)
	})
	return images, nil
}

var errNotDataURI = errors.New("not a data URI")

// DecodeDataURI decodes "data:[<mediatype>][;base64],<data>".
func DecodeDataURI(uri string) ([]byte, string, error) {
	rest, ok := strings.CutPrefix(strings.TrimSpace(uri), "data:")
	if !ok {
		return nil, "", errNotDataURI
	}
	meta, payload, ok := strings.Cut(rest, ",")
	if !ok {
		return nil, "", errors.New("data URI has no payload")
	}
	mediaType, isBase64 := strings.CutSuffix(meta, ";base64")
	if i := strings.IndexByte(mediaType, ';'); i >= 0 {
		mediaType = mediaType[:i]
	}
	if !isBase64 {
		data, err := url.PathUnescape(payload)
		if err != nil {
			return nil, "", err
		}
		return []byte(data), mediaType, nil
	}
	payload = strings.Map(func(r rune) rune {
		if r == ' ' || r == '\n' || r == '\r' || r == '\t' {
			return -1
		}
		return r
	}, payload)
	data, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		data, err = base64.RawStdEncoding.DecodeString(strings.TrimRight(payload, "="))
		if err != nil {
			return nil, "", err
		}
	}
	return data, mediaType, nil
}
