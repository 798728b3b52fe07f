// Package mlt 读写 Shotcut 可打开的 MLT 工程文件。
package mlt

import (
	"bytes"
	"encoding/xml"
	"strings"

	"github.com/pkg/errors"

	"github.com/John-Robertt/bbbdl/internal/domain"
)

// Header 与 Shotcut 产物保持一致。
const Header = `<?xml version="1.0" standalone="no"?>` + "\n"

// MainTractorID 是总合成元素的 id。
const MainTractorID = "main_tractor"

type property struct {
	Name  string `xml:"name,attr"`
	Value string `xml:",chardata"`
}

type producerXML struct {
	XMLName    xml.Name   `xml:"producer"`
	ID         string     `xml:"id,attr"`
	Properties []property `xml:"property"`
}

// itemXML 同时承载 <blank> 与 <entry>；XMLName 决定具体元素。
type itemXML struct {
	XMLName  xml.Name
	Length   string `xml:"length,attr,omitempty"`
	Producer string `xml:"producer,attr,omitempty"`
	In       string `xml:"in,attr,omitempty"`
	Out      string `xml:"out,attr,omitempty"`
}

type playlistXML struct {
	XMLName    xml.Name   `xml:"playlist"`
	ID         string     `xml:"id,attr"`
	Properties []property `xml:"property"`
	Items      []itemXML  `xml:",any"`
}

type trackRefXML struct {
	Producer string `xml:"producer,attr"`
}

type tractorXML struct {
	XMLName    xml.Name      `xml:"tractor"`
	ID         string        `xml:"id,attr"`
	Properties []property    `xml:"property"`
	Tracks     []trackRefXML `xml:"track"`
}

// document 用于写出：producer 与 playlist 需要交错排列。
type document struct {
	XMLName  xml.Name `xml:"mlt"`
	Children []any
}

// parsedDocument 用于读入：顺序只在 tractor 的 track 列表里有意义。
type parsedDocument struct {
	XMLName   xml.Name      `xml:"mlt"`
	Producers []producerXML `xml:"producer"`
	Playlists []playlistXML `xml:"playlist"`
	Tractor   *tractorXML   `xml:"tractor"`
}

// Encode 把时间线写成 MLT 文档。
//
// 输出顺序：每条轨道先写它首次引用的 producer，再写 playlist；最后写 main_tractor。
func Encode(tl domain.Timeline) ([]byte, error) {
	byID := make(map[string]domain.Producer, len(tl.Producers))
	for _, p := range tl.Producers {
		if strings.TrimSpace(p.ID) == "" {
			return nil, errors.New("producer id 为空")
		}
		if _, dup := byID[p.ID]; dup {
			return nil, errors.Errorf("producer id 重复：%s", p.ID)
		}
		byID[p.ID] = p
	}

	doc := document{}
	written := make(map[string]bool, len(tl.Producers))
	tractor := tractorXML{
		ID:         MainTractorID,
		Properties: []property{{Name: "shotcut", Value: "1"}},
	}

	for _, tr := range tl.Tracks {
		if strings.TrimSpace(tr.ID) == "" {
			return nil, errors.Errorf("轨道 %s 缺少 id", tr.Kind)
		}
		pl := playlistXML{ID: tr.ID}
		if tr.Kind == domain.TrackAudio {
			pl.Properties = append(pl.Properties, property{Name: "shotcut:audio", Value: "1"})
		} else {
			pl.Properties = append(pl.Properties, property{Name: "shotcut:video", Value: "1"})
		}
		pl.Properties = append(pl.Properties, property{Name: "shotcut:name", Value: tr.Name})

		for _, e := range tr.Entries {
			if e.Blank {
				if e.LengthMs <= 0 {
					return nil, errors.Errorf("轨道 %s 存在非正长度空白：%d", tr.ID, e.LengthMs)
				}
				pl.Items = append(pl.Items, itemXML{XMLName: xml.Name{Local: "blank"}, Length: FormatTimecode(e.LengthMs)})
				continue
			}
			p, ok := byID[e.Producer]
			if !ok {
				return nil, errors.Errorf("轨道 %s 引用了未知 producer：%s", tr.ID, e.Producer)
			}
			if e.OutMs < e.InMs {
				return nil, errors.Errorf("轨道 %s 片段区间非法：[%d, %d)", tr.ID, e.InMs, e.OutMs)
			}
			if !written[p.ID] {
				written[p.ID] = true
				doc.Children = append(doc.Children, encodeProducer(p))
			}
			pl.Items = append(pl.Items, itemXML{
				XMLName:  xml.Name{Local: "entry"},
				Producer: p.ID,
				In:       FormatTimecode(e.InMs),
				Out:      FormatTimecode(e.OutMs),
			})
		}
		doc.Children = append(doc.Children, pl)
		tractor.Tracks = append(tractor.Tracks, trackRefXML{Producer: tr.ID})
	}

	// 未被任何轨道引用的 producer 仍然写出，放在 tractor 之前。
	for _, p := range tl.Producers {
		if !written[p.ID] {
			doc.Children = append(doc.Children, encodeProducer(p))
		}
	}
	doc.Children = append(doc.Children, tractor)

	b, err := xml.MarshalIndent(doc, "", "  ")
	if err != nil {
		return nil, err
	}
	out := make([]byte, 0, len(Header)+len(b)+1)
	out = append(out, Header...)
	out = append(out, b...)
	out = append(out, '\n')
	return out, nil
}

func encodeProducer(p domain.Producer) producerXML {
	x := producerXML{ID: p.ID}
	add := func(name, value string) {
		x.Properties = append(x.Properties, property{Name: name, Value: value})
	}
	add("resource", p.Resource)
	switch p.Kind {
	case domain.ProducerImage:
		add("mlt_service", "qimage")
		add("ttl", "1")
	case domain.ProducerAudio:
		add("audio_index", "1")
		add("video_index", "-1")
		add("mlt_service", "avformat")
		add("mute_on_pause", "0")
		add("seekable", "1")
	default:
		add("audio_index", "-1")
		add("video_index", "0")
		add("mlt_service", "avformat")
		add("mute_on_pause", "0")
		add("seekable", "1")
	}
	return x
}

// Decode 读回 Encode 产出的文档（以及结构相同的 Shotcut 工程）。
// 轨道顺序取自 main_tractor；producer 顺序取文档顺序。
func Decode(data []byte) (domain.Timeline, error) {
	var doc parsedDocument
	dec := xml.NewDecoder(bytes.NewReader(data))
	if err := dec.Decode(&doc); err != nil {
		return domain.Timeline{}, &domain.ParseError{File: "mlt", Err: err}
	}
	if doc.Tractor == nil {
		return domain.Timeline{}, &domain.ParseError{File: "mlt", Err: errors.New("缺少 <tractor>")}
	}

	var tl domain.Timeline
	kinds := make(map[string]domain.ProducerKind, len(doc.Producers))
	for _, px := range doc.Producers {
		p := decodeProducer(px)
		kinds[p.ID] = p.Kind
		tl.Producers = append(tl.Producers, p)
	}

	playlists := make(map[string]playlistXML, len(doc.Playlists))
	for _, pl := range doc.Playlists {
		playlists[pl.ID] = pl
	}

	for _, ref := range doc.Tractor.Tracks {
		pl, ok := playlists[ref.Producer]
		if !ok {
			return domain.Timeline{}, &domain.ParseError{File: "mlt", Err: errors.Errorf("track 引用了未知 playlist：%s", ref.Producer)}
		}
		tr, err := decodePlaylist(pl, kinds)
		if err != nil {
			return domain.Timeline{}, &domain.ParseError{File: "mlt", Err: err}
		}
		tl.Tracks = append(tl.Tracks, tr)
	}
	return tl, nil
}

func decodeProducer(px producerXML) domain.Producer {
	props := propertyMap(px.Properties)
	p := domain.Producer{ID: px.ID, Resource: props["resource"], Kind: domain.ProducerAudio}
	switch {
	case props["mlt_service"] == "qimage":
		p.Kind = domain.ProducerImage
	case props["audio_index"] == "-1":
		p.Kind = domain.ProducerVideo
	}
	return p
}

func decodePlaylist(pl playlistXML, kinds map[string]domain.ProducerKind) (domain.Track, error) {
	props := propertyMap(pl.Properties)
	tr := domain.Track{ID: pl.ID, Name: props["shotcut:name"], Kind: domain.TrackDeskShare}
	if props["shotcut:audio"] == "1" {
		tr.Kind = domain.TrackAudio
	}

	for _, it := range pl.Items {
		switch it.XMLName.Local {
		case "blank":
			n, err := ParseTimecode(it.Length)
			if err != nil {
				return domain.Track{}, errors.Wrapf(err, "playlist %s", pl.ID)
			}
			tr.Entries = append(tr.Entries, domain.BlankEntry(n))
		case "entry":
			in, err := ParseTimecode(it.In)
			if err != nil {
				return domain.Track{}, errors.Wrapf(err, "playlist %s", pl.ID)
			}
			out, err := ParseTimecode(it.Out)
			if err != nil {
				return domain.Track{}, errors.Wrapf(err, "playlist %s", pl.ID)
			}
			kind, ok := kinds[it.Producer]
			if !ok {
				return domain.Track{}, errors.Errorf("playlist %s 引用了未知 producer：%s", pl.ID, it.Producer)
			}
			if kind == domain.ProducerImage && tr.Kind != domain.TrackAudio {
				tr.Kind = domain.TrackSlideshow
			}
			tr.Entries = append(tr.Entries, domain.ClipEntry(it.Producer, in, out))
		default:
			// 其它元素（filter、transition 等）不影响时间线结构。
		}
	}
	return tr, nil
}

func propertyMap(props []property) map[string]string {
	m := make(map[string]string, len(props))
	for _, p := range props {
		m[p.Name] = strings.TrimSpace(p.Value)
	}
	return m
}
