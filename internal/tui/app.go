package tui

import (
	"context"
	"errors"
	"io"
	"strings"
	"time"

	"github.com/gdamore/tcell/v2"
	"github.com/matheus3301/wppcrm/internal/inbox"
	"github.com/matheus3301/wppcrm/internal/rpc"
	"github.com/matheus3301/wppcrm/internal/status"
	"github.com/matheus3301/wppcrm/internal/tui/keys"
	"github.com/matheus3301/wppcrm/internal/tui/model"
	"github.com/matheus3301/wppcrm/internal/tui/ui"
	"github.com/matheus3301/wppcrm/internal/tui/views"
	"github.com/rivo/tview"
	"go.uber.org/zap"
)

// Page names on the navigation stack.
const (
	pageConversations = "Conversations"
	pageMessages      = "Messages"
	pageDetails       = "Details"
	pageSearch        = "Search"
	pageAuth          = "Auth"
	pageHelp          = "Help"
)

const (
	tick         = time.Second
	statusEvery  = 5
	promptHeight = 3
)

// App is the main TUI application shell.
type App struct {
	app      *tview.Application
	theme    *ui.Theme
	vm       *model.ViewModel
	logger   *zap.Logger
	registry *keys.Registry

	root     *tview.Flex
	pages    *ui.Pages
	prompt   *ui.Prompt
	crumbs   *ui.Crumbs
	menu     *ui.Menu
	info     *ui.SessionInfo
	flashBar *ui.FlashBar

	convList *views.ConversationList
	thread   *views.MessageThread
	details  *views.ConversationInfo
	search   *views.SearchView
	auth     *views.AuthView
	help     *views.HelpView

	components map[string]ui.Component

	// Touched only on the UI goroutine.
	session     inbox.Session
	promptOpen  bool
	authRunning bool
	authCancel  context.CancelFunc

	ctx    context.Context
	cancel context.CancelFunc
}

// NewApp creates the TUI application.
func NewApp(vm *model.ViewModel, logger *zap.Logger) *App {
	if logger == nil {
		logger = zap.NewNop()
	}
	ctx, cancel := context.WithCancel(context.Background())
	theme := ui.DefaultTheme()

	a := &App{
		app:      tview.NewApplication(),
		theme:    theme,
		vm:       vm,
		logger:   logger,
		registry: keys.NewRegistry(),
		pages:    ui.NewPages(),
		prompt:   ui.NewPrompt(theme),
		crumbs:   ui.NewCrumbs(theme),
		menu:     ui.NewMenu(theme, ui.DefaultMenuRows),
		info:     ui.NewSessionInfo(theme),
		flashBar: ui.NewFlashBar(theme),
		thread:   views.NewMessageThread(theme),
		details:  views.NewConversationInfo(theme),
		auth:     views.NewAuthView(theme),
		help:     views.NewHelpView(theme),
		ctx:      ctx,
		cancel:   cancel,
	}
	a.convList = views.NewConversationList(theme, a.presence)
	a.search = views.NewSearchView(theme, a.displayName)

	a.components = map[string]ui.Component{
		pageConversations: a.convList,
		pageMessages:      a.thread,
		pageDetails:       a.details,
		pageSearch:        a.search,
		pageAuth:          a.auth,
		pageHelp:          a.help,
	}

	a.setupBindings()
	a.setupCallbacks()
	a.setupLayout()
	a.help.Update(a.registry, commandHelp())

	return a
}

func (a *App) setupBindings() {
	r := a.registry
	r.AddGlobal(&keys.Action{
		Key: tcell.KeyRune, Rune: ':', Description: "Command mode", Visible: true,
		Handler: func() bool { a.showPrompt(ui.PromptCommand); return true },
	})
	r.AddGlobal(&keys.Action{
		Key: tcell.KeyRune, Rune: '?', Description: "Help", Visible: true,
		Handler: func() bool { a.push(pageHelp); return true },
	})
	r.AddGlobal(&keys.Action{
		Key: tcell.KeyEscape, Label: "Esc", Description: "Go back", Visible: true,
		Handler: func() bool { return a.back() },
	})
	r.AddGlobal(&keys.Action{
		Key: tcell.KeyRune, Rune: 'q', Description: "Back, or quit from the list", Visible: true,
		Handler: func() bool {
			if !a.back() {
				a.Stop()
			}
			return true
		},
	})

	r.AddView(pageConversations, &keys.Action{
		Key: tcell.KeyEnter, Description: "Open conversation", Visible: true,
		Handler: func() bool { a.openConversation(a.convList.SelectedCounterpart()); return true },
	})
	r.AddView(pageConversations, &keys.Action{
		Key: tcell.KeyRune, Rune: 'i', Description: "Conversation details", Visible: true,
		Handler: func() bool { a.showDetails(a.convList.SelectedCounterpart()); return true },
	})
	r.AddView(pageConversations, &keys.Action{
		Key: tcell.KeyRune, Rune: '/', Description: "Filter (#label for labels)", Visible: true,
		Handler: func() bool { a.showPrompt(ui.PromptFilter); return true },
	})
	r.AddView(pageConversations, &keys.Action{
		Key: tcell.KeyRune, Rune: '0', Description: "Clear filter", Visible: true,
		Handler: func() bool { a.convList.ClearFilter(); return true },
	})
	r.AddView(pageConversations, &keys.Action{
		Key: tcell.KeyRune, Rune: 'r', Description: "Reload", Visible: true,
		Handler: func() bool { a.reload(); return true },
	})
	for n := 1; n <= 9; n++ {
		r.AddView(pageConversations, &keys.Action{
			Key: tcell.KeyRune, Rune: rune('0' + n), Label: "1-9", Description: "Open Nth conversation", Visible: n == 1,
			Handler: func() bool {
				if cp := a.convList.CounterpartAt(n); cp != "" {
					a.openConversation(cp)
				}
				return true
			},
		})
	}

	r.AddView(pageMessages, &keys.Action{
		Key: tcell.KeyRune, Rune: 'i', Description: "Focus composer", Visible: true,
		Handler: func() bool { a.app.SetFocus(a.thread.Composer()); return true },
	})
	r.AddView(pageMessages, &keys.Action{
		Key: tcell.KeyRune, Rune: 'm', Description: "Load older messages", Visible: true,
		Handler: func() bool { a.loadMore(); return true },
	})
	r.AddView(pageMessages, &keys.Action{
		Key: tcell.KeyRune, Rune: 'r', Description: "Reload history", Visible: true,
		Handler: func() bool { a.refreshThread(a.session); return true },
	})
	r.AddView(pageMessages, &keys.Action{
		Key: tcell.KeyRune, Rune: 'd', Description: "Conversation details", Visible: true,
		Handler: func() bool { a.showDetails(a.thread.Counterpart()); return true },
	})

	r.AddView(pageSearch, &keys.Action{
		Key: tcell.KeyEnter, Description: "Open result", Visible: true,
		Handler: func() bool {
			if a.app.GetFocus() != a.search.Results() {
				return false
			}
			a.openConversation(a.search.SelectedCounterpart())
			return true
		},
	})

	r.AddView(pageAuth, &keys.Action{
		Key: tcell.KeyRune, Rune: 'r', Description: "Retry QR pairing", Visible: true,
		Handler: func() bool { a.startAuth(); return true },
	})
}

func (a *App) setupCallbacks() {
	a.pages.SetOnChange(func(stack []string) {
		names := make([]string, len(stack))
		for i, p := range stack {
			names[i] = a.components[p].Name()
		}
		a.crumbs.Update(names)
		if c, ok := a.components[a.pages.Current()]; ok {
			a.menu.Update(c.Hints())
		}
	})

	a.prompt.SetOnSubmit(func(mode ui.PromptMode, text string) {
		a.hidePrompt()
		switch mode {
		case ui.PromptCommand:
			a.runCommand(ParseCommand(text))
		case ui.PromptFilter:
			a.convList.SetFilter(strings.TrimSpace(text))
		}
	})
	a.prompt.SetOnCancel(a.hidePrompt)
	a.prompt.SetCompletions(commandNames())

	a.thread.SetOnSend(a.send)

	a.search.SetOnQuery(a.runSearch)
}

func (a *App) runSearch(query string) {
	if strings.TrimSpace(query) == "" {
		return
	}
	go func() {
		results, err := a.vm.Search(a.ctx, query)
		a.app.QueueUpdateDraw(func() {
			if err != nil {
				a.vm.Flash.Err(err)
				return
			}
			a.search.Update(results)
			a.app.SetFocus(a.search.Results())
		})
	}()
}

func (a *App) setupLayout() {
	for name, c := range a.components {
		a.pages.AddPage(name, c, true, false)
	}

	header := tview.NewFlex().
		AddItem(a.info, 40, 0, false).
		AddItem(a.menu, 0, 1, false).
		AddItem(ui.NewLogo(a.theme), 20, 0, false)

	a.root = tview.NewFlex().
		SetDirection(tview.FlexRow).
		AddItem(header, 7, 0, false).
		AddItem(a.prompt, 0, 0, false).
		AddItem(a.pages, 0, 1, true).
		AddItem(a.crumbs, 1, 0, false).
		AddItem(a.flashBar, 1, 0, false)
	a.root.SetBackgroundColor(a.theme.BgColor)

	a.app.SetRoot(a.root, true)
	a.pages.Reset(pageConversations)
	a.app.SetFocus(a.convList)

	a.app.SetInputCapture(a.handleKey)
}

func (a *App) handleKey(ev *tcell.EventKey) *tcell.EventKey {
	focused := a.app.GetFocus()
	switch focused {
	case a.prompt:
		return ev
	case a.thread.Composer():
		if ev.Key() == tcell.KeyEscape {
			a.app.SetFocus(a.thread.Messages())
			return nil
		}
		return ev
	case a.search.Input():
		switch ev.Key() {
		case tcell.KeyEscape:
			a.back()
			return nil
		case tcell.KeyTab:
			a.app.SetFocus(a.search.Results())
			return nil
		}
		return ev
	}

	if a.registry.HandleEvent(a.pages.Current(), ev) {
		return nil
	}
	return ev
}

func (a *App) push(page string) {
	a.pages.Push(page)
	a.focusCurrent()
}

// back pops the stack. It reports false when already on the root page.
func (a *App) back() bool {
	top := a.pages.Pop()
	if top == "" {
		return false
	}
	if top == pageAuth {
		a.stopAuth()
	}
	a.focusCurrent()
	return true
}

func (a *App) focusCurrent() {
	switch a.pages.Current() {
	case pageConversations:
		a.app.SetFocus(a.convList)
	case pageMessages:
		a.app.SetFocus(a.thread.Messages())
	case pageSearch:
		a.app.SetFocus(a.search.Input())
	default:
		if c, ok := a.components[a.pages.Current()]; ok {
			a.app.SetFocus(c)
		}
	}
}

func (a *App) showPrompt(mode ui.PromptMode) {
	a.promptOpen = true
	a.root.ResizeItem(a.prompt, promptHeight, 0)
	a.prompt.Activate(mode)
	a.app.SetFocus(a.prompt)
}

func (a *App) hidePrompt() {
	if !a.promptOpen {
		return
	}
	a.promptOpen = false
	a.root.ResizeItem(a.prompt, 0, 0)
	a.focusCurrent()
}

func (a *App) runCommand(cmd Command) {
	if err := cmd.Validate(); err != nil {
		a.vm.Flash.Warn(err.Error())
		return
	}
	switch cmd.Name {
	case "chat":
		a.openByQuery(cmd.Args)
	case "search":
		a.push(pageSearch)
		if cmd.Args != "" {
			a.search.SetQuery(cmd.Args)
			a.runSearch(cmd.Args)
		}
	case "label":
		a.pages.Reset(pageConversations)
		a.focusCurrent()
		if cmd.Args == "" {
			a.convList.ClearFilter()
			return
		}
		a.convList.SetFilter("#" + cmd.Args)
	case "labels":
		var names []string
		for _, l := range a.vm.Labels() {
			names = append(names, l.Name)
		}
		if len(names) == 0 {
			a.vm.Flash.Info("No labels")
			return
		}
		a.vm.Flash.Info("Labels: " + strings.Join(names, ", "))
	case "reload":
		a.reload()
	case "auth":
		a.startAuth()
	case "pair":
		a.pairPhone(cmd.Args)
	case "logout":
		a.logout()
	case "help":
		a.push(pageHelp)
	case "quit":
		a.Stop()
	}
}

// openByQuery opens the conversation whose number or name matches q. A
// phone number with no conversation yet starts a new one.
func (a *App) openByQuery(q string) {
	cp := inbox.NormalizeCounterpart(q)
	convs := a.vm.Conversations()
	for _, s := range convs {
		if cp != "" && s.Counterpart == cp {
			a.openConversation(s.Counterpart)
			return
		}
	}
	for _, s := range convs {
		if strings.Contains(strings.ToLower(s.Name), strings.ToLower(q)) {
			a.openConversation(s.Counterpart)
			return
		}
	}
	if len(cp) >= 8 {
		a.openConversation(cp)
		return
	}
	a.vm.Flash.Warn("No conversation matches " + q)
}

func (a *App) openConversation(cp string) {
	if cp == "" {
		return
	}
	s, cached, err := a.vm.Open(a.ctx, cp)
	if err != nil {
		a.vm.Flash.Err(err)
		return
	}
	a.session = s
	a.thread.Reset(s.Counterpart(), a.displayName(s.Counterpart()))
	a.thread.Update(cached, false)
	if in := a.vm.Inbox(); in != nil {
		a.thread.SetPresence(in.Presence(s.Counterpart()))
	}
	a.push(pageMessages)
	a.refreshThread(s)
}

func (a *App) refreshThread(s inbox.Session) {
	if s.IsZero() {
		return
	}
	go func() {
		page, err := a.vm.Refresh(a.ctx, s)
		a.app.QueueUpdateDraw(func() {
			if page.Stale || a.session != s {
				return
			}
			if err != nil {
				a.logger.Warn("history load failed", zap.String("counterpart", s.Counterpart()), zap.Error(err))
				a.thread.SetBanner("Could not load history: " + err.Error())
			} else {
				a.thread.SetBanner("")
			}
			a.thread.Update(page.Messages, page.HasMore)
		})
	}()
}

func (a *App) loadMore() {
	s := a.session
	if s.IsZero() {
		return
	}
	if !a.thread.HasMore() {
		a.vm.Flash.Info("No older messages")
		return
	}
	go func() {
		page, err := a.vm.LoadMore(a.ctx, s)
		a.app.QueueUpdateDraw(func() {
			if page.Stale || a.session != s {
				return
			}
			if err != nil {
				a.vm.Flash.Err(err)
			}
			a.thread.Update(page.Messages, page.HasMore)
			a.thread.Messages().ScrollToBeginning()
		})
	}()
}

func (a *App) send(text string) {
	s := a.session
	if s.IsZero() {
		return
	}
	go func() {
		_, err := a.vm.Compose(a.ctx, s, text)
		a.app.QueueUpdateDraw(func() {
			if err != nil {
				a.vm.Flash.Err(err)
			}
			a.redrawThread()
			a.convList.Update(a.vm.Conversations())
		})
	}()
}

// redrawThread re-renders the open conversation from the cache.
func (a *App) redrawThread() {
	in := a.vm.Inbox()
	if in == nil || a.session.IsZero() || !a.threadVisible() {
		return
	}
	a.thread.Update(in.Messages(a.session), in.HasMore(a.session))
	a.thread.SetPresence(in.Presence(a.session.Counterpart()))
}

func (a *App) threadVisible() bool {
	for _, p := range a.pages.Stack() {
		if p == pageMessages {
			return true
		}
	}
	return false
}

func (a *App) showDetails(cp string) {
	in := a.vm.Inbox()
	if cp == "" || in == nil {
		return
	}
	summary, _ := in.Conversation(cp)
	if summary.Counterpart == "" {
		summary = inbox.Summary{Counterpart: cp, JID: inbox.JIDFor(cp), IsGroup: inbox.IsGroup(cp)}
	}
	a.details.Update(summary, in.Presence(cp))
	a.push(pageDetails)

	go func() {
		if _, err := a.vm.Chat(a.ctx, cp); err != nil {
			a.logger.Debug("chat lookup failed", zap.String("counterpart", cp), zap.Error(err))
			return
		}
		a.app.QueueUpdateDraw(func() {
			if a.pages.Current() != pageDetails {
				return
			}
			if s, ok := in.Conversation(cp); ok {
				a.details.Update(s, in.Presence(cp))
			}
		})
	}()
}

func (a *App) presence(cp string) string {
	if in := a.vm.Inbox(); in != nil {
		return in.Presence(cp)
	}
	return ""
}

func (a *App) displayName(cp string) string {
	if in := a.vm.Inbox(); in != nil {
		if s, ok := in.Conversation(cp); ok && s.Name != "" {
			return s.Name
		}
	}
	return cp
}

func (a *App) reload() {
	go func() {
		err := a.vm.LoadChats(a.ctx)
		_ = a.vm.LoadLabels(a.ctx)
		st, stErr := a.vm.LoadStatus(a.ctx)
		a.app.QueueUpdateDraw(func() {
			if err != nil {
				a.vm.Flash.Err(err)
			}
			a.convList.Update(a.vm.Conversations())
			if stErr == nil {
				a.updateInfo(st)
			}
		})
	}()
}

func (a *App) logout() {
	go func() {
		err := a.vm.Logout(a.ctx)
		a.app.QueueUpdateDraw(func() {
			if err != nil {
				a.vm.Flash.Err(err)
				return
			}
			a.vm.Flash.Info("Logged out")
			a.startAuth()
		})
	}()
}

func (a *App) updateInfo(st *rpc.GetSessionStatusResponse) {
	if st == nil {
		return
	}
	a.info.Update(&ui.SessionData{
		Session:      st.Session,
		Phone:        st.PhoneNumber,
		Status:       st.Status,
		Detail:       st.StatusMessage,
		Connected:    st.Connected,
		ChatCount:    st.ChatCount,
		MessageCount: st.MessageCount,
		OutboxQueued: st.OutboxQueued,
		Uptime:       time.Duration(st.UptimeMs) * time.Millisecond,
	})
}

// startAuth shows the auth page and streams QR codes until the session is
// paired, pairing fails or the page is left.
func (a *App) startAuth() {
	a.stopAuth()
	ctx, cancel := context.WithCancel(a.ctx)
	a.authCancel = cancel
	a.authRunning = true

	a.auth.ShowMessage("Starting authentication...")
	a.push(pageAuth)

	go func() {
		err := a.streamAuth(ctx)
		a.app.QueueUpdateDraw(func() {
			if ctx.Err() == nil {
				a.authRunning = false
			}
			if err != nil && ctx.Err() == nil {
				a.auth.ShowMessage("Auth error: " + err.Error() + "\n\nPress r to retry.")
			}
		})
	}()
}

func (a *App) stopAuth() {
	if a.authCancel != nil {
		a.authCancel()
		a.authCancel = nil
	}
	a.authRunning = false
}

func (a *App) streamAuth(ctx context.Context) error {
	stream, err := a.vm.StartAuth(ctx)
	if err != nil {
		return err
	}
	for {
		evt, err := stream.Recv()
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return err
		}

		switch evt.EventType {
		case "qr_code":
			code := evt.QRCode
			a.app.QueueUpdateDraw(func() { a.auth.ShowQR(code) })
		case "authenticated":
			a.app.QueueUpdateDraw(func() { a.auth.ShowMessage("Authenticated! Loading conversations...") })
			a.afterPairing()
			return nil
		case "auth_failed", "timeout":
			msg := evt.Message
			if msg == "" {
				msg = "Authentication failed"
			}
			a.app.QueueUpdateDraw(func() { a.auth.ShowMessage(msg + "\n\nPress r to retry.") })
			return nil
		}
	}
}

func (a *App) pairPhone(phone string) {
	a.stopAuth()
	a.auth.ShowMessage("Requesting pairing code...")
	a.push(pageAuth)
	go func() {
		code, err := a.vm.PairPhone(a.ctx, phone)
		a.app.QueueUpdateDraw(func() {
			if err != nil {
				a.auth.ShowMessage("Pairing failed: " + err.Error())
				return
			}
			a.auth.ShowPairCode(phone, code)
		})
	}()
}

// afterPairing reloads status and conversations and returns to the list.
func (a *App) afterPairing() {
	_ = a.vm.LoadChats(a.ctx)
	st, err := a.vm.LoadStatus(a.ctx)
	a.app.QueueUpdateDraw(func() {
		a.stopAuth()
		if err == nil {
			a.updateInfo(st)
		}
		a.convList.Update(a.vm.Conversations())
		a.pages.Reset(pageConversations)
		a.focusCurrent()
	})
}

// Run starts the TUI application and blocks until it exits.
func (a *App) Run() error {
	go a.boot()
	go a.watchChanges()
	go a.watchFlash()
	return a.app.Run()
}

func (a *App) boot() {
	err := a.vm.Start(a.ctx)
	a.app.QueueUpdateDraw(func() {
		if err != nil {
			a.logger.Error("daemon unavailable", zap.Error(err))
			a.vm.Flash.Err(err)
			return
		}
		st := a.vm.Status()
		a.updateInfo(st)
		a.convList.Update(a.vm.Conversations())
		if st != nil && st.Status == string(status.AuthRequired) {
			a.startAuth()
		}
	})
	a.pollStatus()
}

// pollStatus keeps the header current and follows pairing state changes
// made outside this UI, such as wppctl auth.
func (a *App) pollStatus() {
	ticker := time.NewTicker(tick)
	defer ticker.Stop()
	for n := 1; ; n++ {
		select {
		case <-a.ctx.Done():
			return
		case <-ticker.C:
		}

		var st *rpc.GetSessionStatusResponse
		if n%statusEvery == 0 {
			var err error
			if st, err = a.vm.LoadStatus(a.ctx); err != nil {
				a.logger.Debug("status poll failed", zap.Error(err))
			}
		}
		a.app.QueueUpdateDraw(func() {
			a.flashBar.Show(a.vm.Flash)
			if st == nil {
				return
			}
			a.updateInfo(st)
			onAuth := a.pages.Current() == pageAuth
			switch {
			case st.Status == string(status.AuthRequired) && !onAuth && !a.authRunning:
				a.startAuth()
			case onAuth && status.CanSend(status.State(st.Status)):
				go a.afterPairing()
			}
		})
	}
}

func (a *App) watchChanges() {
	for {
		select {
		case <-a.ctx.Done():
			return
		case <-a.vm.Changes():
			a.app.QueueUpdateDraw(a.applyChanges)
		}
	}
}

// applyChanges redraws the conversation list and the open thread, which
// also refreshes the presence line.
func (a *App) applyChanges() {
	a.convList.Update(a.vm.Conversations())
	a.redrawThread()
}

func (a *App) watchFlash() {
	for {
		select {
		case <-a.ctx.Done():
			return
		case <-a.vm.Flash.Changed():
			a.app.QueueUpdateDraw(func() { a.flashBar.Show(a.vm.Flash) })
		}
	}
}

// Stop gracefully shuts down the TUI.
func (a *App) Stop() {
	a.cancel()
	a.app.Stop()
}
