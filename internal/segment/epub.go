package segment

import (
	"archive/zip"
	"bytes"
	"encoding/xml"
	"fmt"
	"io"
	"path"
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

const containerPath = "META-INF/container.xml"

// epubFile is a parsed EPUB archive: resolved spine order plus the TOC tree.
// Hrefs are resolved to ZIP-internal paths with fragments stripped.
type epubFile struct {
	title string
	spine []string
	toc   []tocEntry

	files  map[string]*zip.File
	closer io.Closer
}

// tocEntry is one navigation node. SpineIndex is the position of the target
// document in the spine, or -1 when the target is not a spine document.
type tocEntry struct {
	Title      string
	Path       string
	SpineIndex int
	Children   []tocEntry
}

// openEPUB opens an EPUB archive from disk. The caller must call close.
func openEPUB(epubPath string) (*epubFile, error) {
	zrc, err := zip.OpenReader(epubPath)
	if err != nil {
		return nil, fmt.Errorf("open archive: %w", err)
	}

	ef, err := parseEPUB(&zrc.Reader)
	if err != nil {
		zrc.Close()
		return nil, err
	}
	ef.closer = zrc
	return ef, nil
}

// newEPUB parses an EPUB archive from an in-memory reader.
func newEPUB(r io.ReaderAt, size int64) (*epubFile, error) {
	zr, err := zip.NewReader(r, size)
	if err != nil {
		return nil, fmt.Errorf("open archive: %w", err)
	}
	return parseEPUB(zr)
}

func (e *epubFile) close() error {
	if e.closer != nil {
		err := e.closer.Close()
		e.closer = nil
		return err
	}
	return nil
}

// readFile reads a ZIP entry by its internal path.
func (e *epubFile) readFile(name string) ([]byte, error) {
	f, ok := e.files[name]
	if !ok {
		return nil, fmt.Errorf("file not in archive: %s", name)
	}
	rc, err := f.Open()
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", name, err)
	}
	defer rc.Close()
	return io.ReadAll(rc)
}

// parseEPUB walks container.xml to the OPF, builds the spine, and parses the
// TOC from the EPUB 3 nav document or the EPUB 2 NCX.
func parseEPUB(zr *zip.Reader) (*epubFile, error) {
	ef := &epubFile{files: make(map[string]*zip.File, len(zr.File))}
	for _, f := range zr.File {
		if _, exists := ef.files[f.Name]; !exists {
			ef.files[f.Name] = f
		}
	}

	opfPath, err := findOPFPath(ef)
	if err != nil {
		return nil, err
	}
	opfDir := path.Dir(opfPath)

	opfData, err := ef.readFile(opfPath)
	if err != nil {
		return nil, fmt.Errorf("read package document: %w", err)
	}

	var pkg opfPackage
	if err := xml.Unmarshal(opfData, &pkg); err != nil {
		return nil, fmt.Errorf("parse package document: %w", err)
	}

	if len(pkg.Metadata.Titles) > 0 {
		ef.title = strings.TrimSpace(pkg.Metadata.Titles[0])
	}

	manifestByID := make(map[string]opfItem, len(pkg.Manifest.Items))
	var navHref, ncxHref string
	for _, item := range pkg.Manifest.Items {
		manifestByID[item.ID] = item
		for _, prop := range strings.Fields(item.Properties) {
			if prop == "nav" {
				navHref = item.Href
			}
		}
	}
	if ncxItem, ok := manifestByID[pkg.Spine.Toc]; ok {
		ncxHref = ncxItem.Href
	}

	spineIndex := make(map[string]int)
	for _, ref := range pkg.Spine.ItemRefs {
		item, ok := manifestByID[ref.IDRef]
		if !ok || ref.Linear == "no" {
			continue
		}
		p := resolvePath(opfDir, item.Href)
		spineIndex[p] = len(ef.spine)
		ef.spine = append(ef.spine, p)
	}

	if navHref != "" {
		navPath := resolvePath(opfDir, navHref)
		if data, err := ef.readFile(navPath); err == nil {
			ef.toc = parseNavTOC(data, path.Dir(navPath), spineIndex)
		}
	}
	if len(ef.toc) == 0 && ncxHref != "" {
		ncxPath := resolvePath(opfDir, ncxHref)
		if data, err := ef.readFile(ncxPath); err == nil {
			ef.toc = parseNCXTOC(data, path.Dir(ncxPath), spineIndex)
		}
	}

	return ef, nil
}

// findOPFPath reads the rootfile path from container.xml, falling back to a
// scan for any .opf entry.
func findOPFPath(ef *epubFile) (string, error) {
	if data, err := ef.readFile(containerPath); err == nil {
		var c containerXML
		if err := xml.Unmarshal(data, &c); err != nil {
			return "", fmt.Errorf("parse container.xml: %w", err)
		}
		for _, rf := range c.RootFiles {
			if p := strings.TrimSpace(rf.FullPath); p != "" {
				return p, nil
			}
		}
		return "", fmt.Errorf("container.xml has no rootfile entry")
	}

	for name := range ef.files {
		if strings.HasSuffix(strings.ToLower(name), ".opf") {
			return name, nil
		}
	}
	return "", fmt.Errorf("no package document found in archive")
}

// resolvePath joins an href onto the directory of the referencing document
// and strips any fragment.
func resolvePath(dir, href string) string {
	href = stripFragment(href)
	if href == "" {
		return ""
	}
	if dir == "." || dir == "" {
		return path.Clean(href)
	}
	return path.Join(dir, href)
}

func stripFragment(href string) string {
	if i := strings.IndexByte(href, '#'); i >= 0 {
		return href[:i]
	}
	return href
}

// Container and OPF XML shapes.

type containerXML struct {
	XMLName   xml.Name `xml:"container"`
	RootFiles []struct {
		FullPath  string `xml:"full-path,attr"`
		MediaType string `xml:"media-type,attr"`
	} `xml:"rootfiles>rootfile"`
}

type opfPackage struct {
	XMLName  xml.Name `xml:"package"`
	Version  string   `xml:"version,attr"`
	Metadata struct {
		Titles []string `xml:"http://purl.org/dc/elements/1.1/ title"`
	} `xml:"metadata"`
	Manifest struct {
		Items []opfItem `xml:"item"`
	} `xml:"manifest"`
	Spine struct {
		Toc      string `xml:"toc,attr"`
		ItemRefs []struct {
			IDRef  string `xml:"idref,attr"`
			Linear string `xml:"linear,attr"`
		} `xml:"itemref"`
	} `xml:"spine"`
}

type opfItem struct {
	ID         string `xml:"id,attr"`
	Href       string `xml:"href,attr"`
	MediaType  string `xml:"media-type,attr"`
	Properties string `xml:"properties,attr"`
}

// NCX (EPUB 2) TOC.

type ncxRoot struct {
	XMLName xml.Name  `xml:"ncx"`
	NavMap  ncxNavMap `xml:"navMap"`
}

type ncxNavMap struct {
	NavPoints []ncxNavPoint `xml:"navPoint"`
}

type ncxNavPoint struct {
	Label struct {
		Text string `xml:"text"`
	} `xml:"navLabel"`
	Content struct {
		Src string `xml:"src,attr"`
	} `xml:"content"`
	Children []ncxNavPoint `xml:"navPoint"`
}

func parseNCXTOC(data []byte, dir string, spineIndex map[string]int) []tocEntry {
	var ncx ncxRoot
	if err := xml.Unmarshal(data, &ncx); err != nil {
		return nil
	}
	return convertNavPoints(ncx.NavMap.NavPoints, dir, spineIndex)
}

func convertNavPoints(points []ncxNavPoint, dir string, spineIndex map[string]int) []tocEntry {
	entries := make([]tocEntry, 0, len(points))
	for _, np := range points {
		title := strings.TrimSpace(np.Label.Text)
		target := resolvePath(dir, np.Content.Src)
		if title == "" && target == "" {
			continue
		}
		entry := tocEntry{
			Title:      title,
			Path:       target,
			SpineIndex: -1,
			Children:   convertNavPoints(np.Children, dir, spineIndex),
		}
		if idx, ok := spineIndex[target]; ok {
			entry.SpineIndex = idx
		}
		entries = append(entries, entry)
	}
	return entries
}

// Nav document (EPUB 3) TOC.

func parseNavTOC(data []byte, dir string, spineIndex map[string]int) []tocEntry {
	doc, err := html.Parse(bytes.NewReader(data))
	if err != nil {
		return nil
	}

	nav := findTOCNav(doc)
	if nav == nil {
		return nil
	}
	ol := findChildElement(nav, atom.Ol)
	if ol == nil {
		return nil
	}
	return parseNavList(ol, dir, spineIndex)
}

// findTOCNav locates <nav epub:type="toc">, or any <nav> as a fallback.
func findTOCNav(n *html.Node) *html.Node {
	var firstNav, tocNav *html.Node
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if tocNav != nil {
			return
		}
		if n.Type == html.ElementNode && n.DataAtom == atom.Nav {
			if firstNav == nil {
				firstNav = n
			}
			if strings.Contains(nodeAttr(n, "epub:type"), "toc") {
				tocNav = n
				return
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(n)
	if tocNav != nil {
		return tocNav
	}
	return firstNav
}

func parseNavList(ol *html.Node, dir string, spineIndex map[string]int) []tocEntry {
	var entries []tocEntry
	for li := ol.FirstChild; li != nil; li = li.NextSibling {
		if li.Type != html.ElementNode || li.DataAtom != atom.Li {
			continue
		}

		entry := tocEntry{SpineIndex: -1}
		if a := findChildElement(li, atom.A); a != nil {
			entry.Title = strings.TrimSpace(nodeText(a))
			entry.Path = resolvePath(dir, nodeAttr(a, "href"))
			if idx, ok := spineIndex[entry.Path]; ok {
				entry.SpineIndex = idx
			}
		} else if span := findChildElement(li, atom.Span); span != nil {
			entry.Title = strings.TrimSpace(nodeText(span))
		}
		if sub := findChildElement(li, atom.Ol); sub != nil {
			entry.Children = parseNavList(sub, dir, spineIndex)
		}

		if entry.Title == "" && entry.Path == "" && len(entry.Children) == 0 {
			continue
		}
		entries = append(entries, entry)
	}
	return entries
}

func findChildElement(n *html.Node, a atom.Atom) *html.Node {
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if c.Type == html.ElementNode && c.DataAtom == a {
			return c
		}
	}
	return nil
}

func nodeAttr(n *html.Node, key string) string {
	for _, attr := range n.Attr {
		if attr.Key == key {
			return attr.Val
		}
	}
	return ""
}

func nodeText(n *html.Node) string {
	var sb strings.Builder
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.TextNode {
			sb.WriteString(n.Data)
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(n)
	return sb.String()
}
