package overlay

// linkOverlay embeds a page. It is closed only by CloseLink or Dispose.
type linkOverlay struct {
	url  string
	page Element
}

func openLink(surface Surface, url string) (*linkOverlay, error) {
	el, err := surface.OpenPage(url)
	if err != nil {
		return nil, err
	}
	return &linkOverlay{url: url, page: el}, nil
}

func (o *linkOverlay) dispose() error {
	if o.page == nil {
		return nil
	}
	err := o.page.Close()
	o.page = nil
	return err
}
