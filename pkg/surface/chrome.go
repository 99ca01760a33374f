package surface

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os/exec"
	"strings"
	"time"

	"courtbot/pkg/log"
	"github.com/PuerkitoBio/goquery"
	"github.com/chromedp/cdproto/emulation"
	"github.com/chromedp/chromedp"
	"go.uber.org/zap"
)

const (
	refAttributeLiteral        = "data-courtbot-ref"
	slotRefPrefixLiteral       = "slot"
	unavailableRefPrefix       = "full"
	dialogRefPrefixLiteral     = "dialog"
	buttonRefPrefixLiteral     = "button"
	documentSelectorLiteral    = "html"
	// chromedp only captures PNG at quality 100; lower values produce JPEG.
	screenshotQuality          = 100
	defaultStepTimeout         = 20 * time.Second
	defaultOpenTimeout         = 60 * time.Second
	defaultButtonQueryLiteral  = `button, [role="button"], input[type="submit"], a.btn`
	defaultDialogQueryLiteral  = `[role="dialog"], dialog[open], .modal.show, .modal.in`
	defaultWindowWidth         = 1366
	defaultWindowHeight        = 1000
	// drops refs left by an earlier pass so a stale node never answers a new ref
	clearRefsScriptLiteral     = `  document.querySelectorAll('[' + attribute + '^="' + prefix + '-"]').forEach(function(node){ node.removeAttribute(attribute); });`
	revealScrollScriptTemplate = `(function(selector){
  const target = selector ? document.querySelector(selector) : null;
  const scroller = target || document.scrollingElement || document.body;
  scroller.scrollTop = scroller.scrollHeight;
  window.scrollTo(0, document.body.scrollHeight);
  return scroller.scrollHeight;
})(%s)`
	revealScrollTopScriptTemplate = `(function(selector){
  const target = selector ? document.querySelector(selector) : null;
  const scroller = target || document.scrollingElement || document.body;
  scroller.scrollTop = 0;
  window.scrollTo(0, 0);
  return 0;
})(%s)`
	tagScriptTemplate = `(function(selector, scope, prefix, attribute){
` + clearRefsScriptLiteral + `
  const roots = scope ? Array.from(document.querySelectorAll(scope)) : [document];
  let count = 0;
  roots.forEach(function(root){
    root.querySelectorAll(selector).forEach(function(node){
      node.setAttribute(attribute, prefix + '-' + count);
      count++;
    });
  });
  return count;
})(%s, %s, %s, %s)`
	visibleButtonScriptTemplate = `(function(query, label, prefix, attribute){
` + clearRefsScriptLiteral + `
  const wanted = label.trim().toLowerCase();
  const nodes = Array.from(document.querySelectorAll(query));
  for (let index = 0; index < nodes.length; index++) {
    const node = nodes[index];
    const text = (node.innerText || node.value || node.getAttribute('aria-label') || '').trim().toLowerCase();
    const box = node.getBoundingClientRect();
    const visible = box.width > 0 && box.height > 0 && getComputedStyle(node).visibility !== 'hidden' && !node.disabled;
    if (visible && text === wanted) {
      const ref = prefix + '-' + index;
      node.setAttribute(attribute, ref);
      return ref;
    }
  }
  return '';
})(%s, %s, %s, %s)`
)

var chromeExecutablePath = func() string {
	if path, _ := exec.LookPath("google-chrome"); path != "" {
		return path
	}
	if path, _ := exec.LookPath("chromium"); path != "" {
		return path
	}
	return "/Applications/Google Chrome.app/Contents/MacOS/Google Chrome"
}

// Selectors describe the markup of the remote calendar. Only DateLabel, NextButton,
// PreviousButton, SlotCandidate and UnavailableIndicator are required.
type Selectors struct {
	Ready                string   `yaml:"ready"`
	DateLabel            string   `yaml:"dateLabel"`
	NextButton           string   `yaml:"nextButton"`
	PreviousButton       string   `yaml:"previousButton"`
	SlotCandidate        string   `yaml:"slotCandidate"`
	UnavailableIndicator string   `yaml:"unavailableIndicator"`
	SlotParent           string   `yaml:"slotParent"`
	SlotTime             string   `yaml:"slotTime"`
	ScrollContainer      string   `yaml:"scrollContainer"`
	Reveal               []string `yaml:"reveal"`
	Dialog               string   `yaml:"dialog"`
	Button               string   `yaml:"button"`
	LoginUsername        string   `yaml:"loginUsername"`
	LoginPassword        string   `yaml:"loginPassword"`
	LoginSubmit          string   `yaml:"loginSubmit"`
}

type ChromeConfig struct {
	URL          string
	LoginURL     string
	Username     string
	Password     string
	ExecPath     string
	Headless     bool
	UserDataDir  string
	TimeZone     string
	OpenTimeout  time.Duration
	StepTimeout  time.Duration
	StepSettle   time.Duration
	RevealSettle time.Duration
	ClickSettle  time.Duration
	Selectors    Selectors
}

// ChromeOpener launches a dedicated headless Chrome per session.
type ChromeOpener struct {
	config ChromeConfig
}

func NewChromeOpener(config ChromeConfig) *ChromeOpener {
	if config.ExecPath == "" {
		config.ExecPath = chromeExecutablePath()
	}
	if config.StepTimeout <= 0 {
		config.StepTimeout = defaultStepTimeout
	}
	if config.OpenTimeout <= 0 {
		config.OpenTimeout = defaultOpenTimeout
	}
	if config.Selectors.Button == "" {
		config.Selectors.Button = defaultButtonQueryLiteral
	}
	if config.Selectors.Dialog == "" {
		config.Selectors.Dialog = defaultDialogQueryLiteral
	}
	return &ChromeOpener{config: config}
}

func (o *ChromeOpener) Open(parentContext context.Context) (Session, error) {
	allocatorOptions := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.ExecPath(o.config.ExecPath),
		chromedp.Flag("headless", o.config.Headless),
		chromedp.Flag("disable-gpu", true),
		chromedp.WindowSize(defaultWindowWidth, defaultWindowHeight),
	)
	if o.config.UserDataDir != "" {
		allocatorOptions = append(allocatorOptions, chromedp.UserDataDir(o.config.UserDataDir))
	}
	allocatorContext, allocatorCancel := chromedp.NewExecAllocator(parentContext, allocatorOptions...)
	browserContext, browserCancel := chromedp.NewContext(allocatorContext)

	session := &ChromeSession{
		config:          o.config,
		browserContext:  browserContext,
		browserCancel:   browserCancel,
		allocatorCancel: allocatorCancel,
	}
	if openError := session.establish(); openError != nil {
		_ = session.Close()
		return nil, fmt.Errorf("%w: open: %v", ErrSessionClosed, openError)
	}
	return session, nil
}

// ChromeSession is one browser driving the remote calendar.
type ChromeSession struct {
	config          ChromeConfig
	browserContext  context.Context
	browserCancel   context.CancelFunc
	allocatorCancel context.CancelFunc
}

func (s *ChromeSession) establish() error {
	contextWithTimeout, contextCancel := context.WithTimeout(s.browserContext, s.config.OpenTimeout)
	defer contextCancel()

	selectors := s.config.Selectors
	var actions []chromedp.Action
	if s.config.TimeZone != "" {
		actions = append(actions, chromedp.ActionFunc(func(ctx context.Context) error {
			return emulation.SetTimezoneOverride(s.config.TimeZone).Do(ctx)
		}))
	}
	if s.config.LoginURL != "" && s.config.Username != "" {
		actions = append(actions,
			chromedp.Navigate(s.config.LoginURL),
			chromedp.WaitVisible(selectors.LoginUsername, chromedp.ByQuery),
			chromedp.SendKeys(selectors.LoginUsername, s.config.Username, chromedp.ByQuery),
			chromedp.SendKeys(selectors.LoginPassword, s.config.Password, chromedp.ByQuery),
			chromedp.Click(selectors.LoginSubmit, chromedp.ByQuery),
			chromedp.Sleep(s.config.StepSettle),
		)
	}
	actions = append(actions, chromedp.Navigate(s.config.URL))
	if selectors.Ready != "" {
		actions = append(actions, chromedp.WaitVisible(selectors.Ready, chromedp.ByQuery))
	}
	actions = append(actions, chromedp.WaitVisible(selectors.DateLabel, chromedp.ByQuery))

	log.L().Info("surface_open", zap.String("url", s.config.URL), zap.Bool("login", s.config.LoginURL != ""))
	return chromedp.Run(contextWithTimeout, actions...)
}

func (s *ChromeSession) run(parentContext context.Context, operation string, actions ...chromedp.Action) error {
	contextWithTimeout, contextCancel := context.WithTimeout(s.browserContext, s.config.StepTimeout)
	defer contextCancel()
	stop := context.AfterFunc(parentContext, contextCancel)
	defer stop()

	if runError := chromedp.Run(contextWithTimeout, actions...); runError != nil {
		return s.classify(operation, runError)
	}
	return nil
}

func (s *ChromeSession) classify(operation string, runError error) error {
	if s.browserContext.Err() != nil || errors.Is(runError, chromedp.ErrInvalidContext) {
		return fmt.Errorf("%s: %w: %v", operation, ErrSessionClosed, runError)
	}
	return fmt.Errorf("%s: %w", operation, runError)
}

func (s *ChromeSession) CurrentDateText(ctx context.Context) (string, error) {
	var displayed string
	runError := s.run(ctx, "read date", chromedp.Text(s.config.Selectors.DateLabel, &displayed, chromedp.ByQuery))
	return strings.TrimSpace(displayed), runError
}

func (s *ChromeSession) StepForward(ctx context.Context) error {
	return s.run(ctx, "step forward",
		chromedp.Click(s.config.Selectors.NextButton, chromedp.ByQuery),
		chromedp.Sleep(s.config.StepSettle),
	)
}

func (s *ChromeSession) StepBackward(ctx context.Context) error {
	return s.run(ctx, "step backward",
		chromedp.Click(s.config.Selectors.PreviousButton, chromedp.ByQuery),
		chromedp.Sleep(s.config.StepSettle),
	)
}

func (s *ChromeSession) Reveal(ctx context.Context) error {
	var actions []chromedp.Action
	for _, revealSelector := range s.config.Selectors.Reveal {
		revealSelector := revealSelector
		actions = append(actions, chromedp.ActionFunc(func(actionContext context.Context) error {
			_ = chromedp.Click(revealSelector, chromedp.ByQuery, chromedp.AtLeast(0)).Do(actionContext)
			return nil
		}))
	}
	var scrollHeight int
	var scrollTop int
	actions = append(actions,
		chromedp.Evaluate(fmt.Sprintf(revealScrollScriptTemplate, jsString(s.config.Selectors.ScrollContainer)), &scrollHeight),
		chromedp.Sleep(s.config.RevealSettle),
		chromedp.Evaluate(fmt.Sprintf(revealScrollTopScriptTemplate, jsString(s.config.Selectors.ScrollContainer)), &scrollTop),
		chromedp.Sleep(s.config.RevealSettle),
	)
	return s.run(ctx, "reveal", actions...)
}

func (s *ChromeSession) ScrapeSlotCandidates(ctx context.Context) ([]SlotCandidate, error) {
	document, scrapeError := s.taggedDocument(ctx, s.config.Selectors.SlotCandidate, "", slotRefPrefixLiteral)
	if scrapeError != nil {
		return nil, scrapeError
	}
	return parseSlotCandidates(document, s.config.Selectors), nil
}

func (s *ChromeSession) ScrapeUnavailableIndicators(ctx context.Context) ([]UnavailableIndicator, error) {
	document, scrapeError := s.taggedDocument(ctx, s.config.Selectors.UnavailableIndicator, "", unavailableRefPrefix)
	if scrapeError != nil {
		return nil, scrapeError
	}
	return parseUnavailableIndicators(document, s.config.Selectors), nil
}

func (s *ChromeSession) ListButtonsInOpenDialog(ctx context.Context) ([]Button, error) {
	document, scrapeError := s.taggedDocument(ctx, s.config.Selectors.Button, s.config.Selectors.Dialog, dialogRefPrefixLiteral)
	if scrapeError != nil {
		return nil, scrapeError
	}
	return parseDialogButtons(document), nil
}

// taggedDocument marks every element matching selector with a ref attribute and returns the
// page markup, so parsed records can be clicked later by ref.
func (s *ChromeSession) taggedDocument(ctx context.Context, selector, scope, prefix string) (*goquery.Document, error) {
	var taggedCount int
	var pageHTML string
	script := fmt.Sprintf(tagScriptTemplate, jsString(selector), jsString(scope), jsString(prefix), jsString(refAttributeLiteral))
	runError := s.run(ctx, "scrape "+prefix,
		chromedp.Evaluate(script, &taggedCount),
		chromedp.OuterHTML(documentSelectorLiteral, &pageHTML, chromedp.ByQuery),
	)
	if runError != nil {
		return nil, runError
	}
	log.L().Debug("surface_tagged", zap.String("prefix", prefix), zap.Int("count", taggedCount))
	return goquery.NewDocumentFromReader(strings.NewReader(pageHTML))
}

func (s *ChromeSession) FindVisibleButtonByText(ctx context.Context, label string) (string, bool, error) {
	var ref string
	script := visibleButtonScript(s.config.Selectors.Button, label)
	if runError := s.run(ctx, "find button", chromedp.Evaluate(script, &ref)); runError != nil {
		return "", false, runError
	}
	return ref, ref != "", nil
}

func visibleButtonScript(query, label string) string {
	return fmt.Sprintf(visibleButtonScriptTemplate, jsString(query), jsString(label), jsString(buttonRefPrefixLiteral), jsString(refAttributeLiteral))
}

func (s *ChromeSession) Click(ctx context.Context, ref string) error {
	selector := refSelector(ref)
	return s.run(ctx, "click "+ref,
		chromedp.ScrollIntoView(selector, chromedp.ByQuery),
		chromedp.Click(selector, chromedp.ByQuery),
		chromedp.Sleep(s.config.ClickSettle),
	)
}

func (s *ChromeSession) Screenshot(ctx context.Context) ([]byte, error) {
	var imageBytes []byte
	runError := s.run(ctx, "screenshot", chromedp.FullScreenshot(&imageBytes, screenshotQuality))
	return imageBytes, runError
}

func (s *ChromeSession) Close() error {
	s.browserCancel()
	s.allocatorCancel()
	log.L().Info("surface_closed")
	return nil
}

func refSelector(ref string) string {
	return fmt.Sprintf(`[%s=%q]`, refAttributeLiteral, ref)
}

func jsString(value string) string {
	encoded, _ := json.Marshal(value)
	return string(encoded)
}
