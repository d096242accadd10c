// This file implements the interactive planning console using bubbletea.
package main

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"plannerd/cmd/plannerd/ui"
	"plannerd/internal/articulation"
	"plannerd/internal/catalog"
	"plannerd/internal/config"
	"plannerd/internal/perception"
	"plannerd/pkg/goap"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/glamour"
	"github.com/charmbracelet/lipgloss"
)

// consoleModel is the main model for the interactive planning console
type consoleModel struct {
	// UI components
	textinput textinput.Model
	viewport  viewport.Model
	spinner   spinner.Model
	styles    ui.Styles
	renderer  *glamour.TermRenderer

	// State
	history   []consoleEntry
	isLoading bool
	err       error
	width     int
	height    int
	ready     bool

	// Planning backend
	planner     *goap.Planner
	actionCount int
	state       goap.WorldState
	transducer  *perception.Transducer // nil without an API key
	emitter     *articulation.Emitter
	depth       int
	timeout     time.Duration
}

type consoleEntry struct {
	role    string // "user" or "plannerd"
	content string
	time    time.Time
}

// Messages for tea updates
type (
	responseMsg      string
	errorMsg         error
	catalogReloadMsg []goap.Action
)

// newConsoleModel initializes the console model over a loaded catalogue
func newConsoleModel(cfg *config.Config, actions []goap.Action) consoleModel {
	styles := ui.NewStyles(ui.ThemeFromName(cfg.UI.Theme))

	ti := textinput.New()
	ti.Placeholder = "Goal as key=value,key=value... (Enter to plan, Ctrl+C to exit)"
	if cfg.HasLLM() {
		ti.Placeholder = "Describe a goal... (Enter to plan, Ctrl+C to exit)"
	}
	ti.Focus()
	ti.Prompt = "│ "
	ti.CharLimit = 512
	ti.Width = 80
	ti.PromptStyle = styles.Prompt
	ti.TextStyle = styles.UserInput

	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = styles.Spinner

	vp := viewport.New(80, 20)
	vp.SetContent("")

	var transducer *perception.Transducer
	if cfg.HasLLM() {
		gc := perception.DefaultGeminiConfig(cfg.LLM.APIKey)
		if cfg.LLM.Model != "" {
			gc.Model = cfg.LLM.Model
		}
		if cfg.LLM.BaseURL != "" {
			gc.BaseURL = cfg.LLM.BaseURL
		}
		gc.Timeout = cfg.GetLLMTimeout()
		client := perception.NewGeminiClientWithConfig(gc, logger)
		transducer = perception.NewTransducer(client, logger)
	}

	return consoleModel{
		textinput:   ti,
		viewport:    vp,
		spinner:     sp,
		styles:      styles,
		renderer:    newMarkdownRenderer(styles, 80),
		history:     []consoleEntry{},
		planner:     goap.NewPlanner(actions),
		actionCount: len(actions),
		state:       goap.NewWorldState(),
		transducer:  transducer,
		emitter:     articulation.NewEmitter(),
		depth:       cfg.Planner.MaxDepth,
		timeout:     cfg.GetPlanTimeout(),
	}
}

// newMarkdownRenderer builds a glamour renderer matched to the theme.
func newMarkdownRenderer(styles ui.Styles, width int) *glamour.TermRenderer {
	if styles.Theme.IsDark {
		r, _ := glamour.NewTermRenderer(
			glamour.WithAutoStyle(),
			glamour.WithWordWrap(width),
		)
		return r
	}
	r, _ := glamour.NewTermRenderer(
		glamour.WithStylePath("light"),
		glamour.WithWordWrap(width),
	)
	return r
}

func (m consoleModel) Init() tea.Cmd {
	return tea.Batch(
		textinput.Blink,
		m.spinner.Tick,
	)
}

func (m consoleModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var (
		tiCmd tea.Cmd
		vpCmd tea.Cmd
		spCmd tea.Cmd
	)

	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.Type {
		case tea.KeyCtrlC, tea.KeyEsc:
			return m, tea.Quit

		case tea.KeyEnter:
			if !m.isLoading {
				return m.handleSubmit()
			}
		}

		if !m.isLoading {
			m.textinput, tiCmd = m.textinput.Update(msg)
		}

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height

		headerHeight := 3
		footerHeight := 2
		inputHeight := 3

		if !m.ready {
			m.viewport = viewport.New(msg.Width-4, msg.Height-headerHeight-footerHeight-inputHeight)
			m.ready = true
		} else {
			m.viewport.Width = msg.Width - 4
			m.viewport.Height = msg.Height - headerHeight - footerHeight - inputHeight
		}

		m.textinput.Width = msg.Width - 4
		m.renderer = newMarkdownRenderer(m.styles, msg.Width-8)
		m.viewport.SetContent(m.renderHistory())

	case spinner.TickMsg:
		if m.isLoading {
			m.spinner, spCmd = m.spinner.Update(msg)
			return m, spCmd
		}

	case responseMsg:
		m.isLoading = false
		m.err = nil
		m.history = append(m.history, consoleEntry{
			role:    "plannerd",
			content: string(msg),
			time:    time.Now(),
		})
		m.viewport.SetContent(m.renderHistory())
		m.viewport.GotoBottom()

	case errorMsg:
		m.isLoading = false
		m.err = msg

	case catalogReloadMsg:
		m.planner = goap.NewPlanner([]goap.Action(msg))
		m.actionCount = len(msg)
		m.history = append(m.history, consoleEntry{
			role:    "plannerd",
			content: fmt.Sprintf("_Catalogue reloaded: %d actions._", len(msg)),
			time:    time.Now(),
		})
		m.viewport.SetContent(m.renderHistory())
		m.viewport.GotoBottom()
	}

	m.viewport, vpCmd = m.viewport.Update(msg)

	return m, tea.Batch(tiCmd, vpCmd, spCmd)
}

func (m consoleModel) handleSubmit() (tea.Model, tea.Cmd) {
	input := strings.TrimSpace(m.textinput.Value())
	if input == "" {
		return m, nil
	}

	if strings.HasPrefix(input, "/") {
		return m.handleCommand(input)
	}

	m.history = append(m.history, consoleEntry{
		role:    "user",
		content: input,
		time:    time.Now(),
	})
	m.textinput.Reset()
	m.viewport.SetContent(m.renderHistory())
	m.viewport.GotoBottom()
	m.err = nil
	m.isLoading = true

	return m, tea.Batch(
		m.spinner.Tick,
		m.processGoal(input),
	)
}

func (m consoleModel) handleCommand(input string) (tea.Model, tea.Cmd) {
	parts := strings.Fields(input)
	command := parts[0]
	m.textinput.Reset()

	switch command {
	case "/quit", "/exit", "/q":
		return m, tea.Quit

	case "/clear":
		m.history = []consoleEntry{}
		m.viewport.SetContent("")
		return m, nil

	case "/state":
		m.pushReply("```\n" + m.emitter.StateDump(m.state) + "```")
		return m, nil

	case "/set":
		if len(parts) < 2 {
			m.pushReply("Usage: `/set key=value,key=value`")
			return m, nil
		}
		facts, err := catalog.ParseFactAssignments(strings.Join(parts[1:], " "))
		if err != nil {
			m.pushReply(fmt.Sprintf("Could not parse assignments: %v", err))
			return m, nil
		}
		for k, v := range facts {
			m.state.Facts[k] = v
		}
		m.pushReply("```\n" + m.emitter.StateDump(m.state) + "```")
		return m, nil

	case "/actions":
		m.pushReply(m.emitter.ActionTable(m.planner.ApplicableActions(m.state)))
		return m, nil

	case "/help":
		m.pushReply(consoleHelp)
		return m, nil

	default:
		m.pushReply(fmt.Sprintf("Unknown command `%s`. Try `/help`.", command))
		return m, nil
	}
}

const consoleHelp = `## Console Commands

| Command | Description |
|---------|-------------|
| /state | Show the working state |
| /set key=value,... | Set facts in the working state |
| /actions | List actions applicable in the working state |
| /clear | Clear the session |
| /help | Show this help |
| /quit, /exit, /q | Leave the console |

## Tips

- Type a goal and press **Enter** to plan from the working state
- Goals are ` + "`key=value,key=value`" + ` assignments, or plain language when an API key is configured
- Edits to the catalogue directory reload automatically
- **Ctrl+C** or **Esc** to exit
`

// pushReply appends a plannerd entry and scrolls to it.
func (m *consoleModel) pushReply(content string) {
	m.history = append(m.history, consoleEntry{
		role:    "plannerd",
		content: content,
		time:    time.Now(),
	})
	m.viewport.SetContent(m.renderHistory())
	m.viewport.GotoBottom()
}

// processGoal plans the entered goal against the working state.
func (m consoleModel) processGoal(input string) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), m.timeout)
		defer cancel()

		goal, err := m.parseGoal(ctx, input)
		if err != nil {
			return errorMsg(fmt.Errorf("could not read a goal from %q: %w", input, err))
		}

		plan, err := m.planner.PlanContext(ctx, m.state, goal, m.depth)
		if err != nil {
			return errorMsg(err)
		}
		if plan == nil {
			return responseMsg(m.emitter.NoPlanReport(goal, nil))
		}
		return responseMsg(m.emitter.PlanReport(goal, plan))
	}
}

// parseGoal goes through the transducer when one is configured, else
// the key=value parser.
func (m consoleModel) parseGoal(ctx context.Context, input string) (goap.GoalState, error) {
	if m.transducer != nil {
		return m.transducer.ParseGoal(ctx, input, perception.Vocabulary(m.planner.Actions()))
	}
	desired, err := catalog.ParseFactAssignments(input)
	if err != nil {
		return goap.GoalState{}, err
	}
	return goap.NewGoal("console", desired), nil
}

func (m consoleModel) renderHistory() string {
	var sb strings.Builder

	for _, entry := range m.history {
		if entry.role == "user" {
			userStyle := m.styles.Bold.
				Foreground(m.styles.Theme.Primary).
				MarginTop(1)
			sb.WriteString(userStyle.Render("You") + "\n")
			sb.WriteString(m.styles.UserInput.Render(entry.content))
			sb.WriteString("\n\n")
		} else {
			replyStyle := m.styles.Bold.
				Foreground(m.styles.Theme.Accent).
				MarginTop(1)
			sb.WriteString(replyStyle.Render("plannerd") + "\n")
			sb.WriteString(m.safeRenderMarkdown(entry.content))
			sb.WriteString("\n")
		}
	}

	return sb.String()
}

// safeRenderMarkdown renders markdown with panic recovery.
func (m consoleModel) safeRenderMarkdown(content string) (result string) {
	defer func() {
		if r := recover(); r != nil {
			result = content
		}
	}()

	if m.renderer != nil && content != "" {
		rendered, err := m.renderer.Render(content)
		if err == nil {
			return rendered
		}
	}
	return content
}

func (m consoleModel) View() string {
	if !m.ready {
		return "Initializing..."
	}

	header := m.renderHeader()

	content := m.styles.Content.Render(m.viewport.View())
	if m.isLoading {
		content += "\n" + m.styles.Spinner.Render(m.spinner.View()) + " Planning..."
	}
	if m.err != nil {
		content += "\n" + m.styles.Error.Render("Error: "+m.err.Error())
	}

	inputStyle := lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(m.styles.Theme.Accent).
		Padding(0, 1)
	inputArea := inputStyle.Render(m.textinput.View())

	footer := m.styles.Footer.Render("Enter: plan • /help: commands • Ctrl+C: exit")

	return lipgloss.JoinVertical(
		lipgloss.Left,
		header,
		content,
		inputArea,
		footer,
	)
}

func (m consoleModel) renderHeader() string {
	title := m.styles.Header.Render(" plannerd ")
	build := m.styles.Badge.Render(version)
	catalogue := m.styles.Muted.Render(fmt.Sprintf(" %d actions", m.actionCount))

	var status string
	if m.isLoading {
		status = m.styles.Warning.Render("● Planning")
	} else {
		status = m.styles.Success.Render("● Ready")
	}

	headerLine := lipgloss.JoinHorizontal(
		lipgloss.Center,
		title,
		build,
		catalogue,
		"  ",
		status,
	)

	return lipgloss.JoinVertical(
		lipgloss.Left,
		headerLine,
		m.styles.RenderDivider(m.width),
	)
}

// runConsole starts the interactive console over the configured
// catalogue, with hot reload while it runs.
func runConsole() error {
	actions, err := loadCatalogue()
	if err != nil {
		return err
	}

	p := tea.NewProgram(
		newConsoleModel(cfg, actions),
		tea.WithAltScreen(),
	)

	// Catalogue edits surface as messages while the console runs.
	if info, serr := os.Stat(cfg.CatalogDir); serr == nil && info.IsDir() {
		watcher, werr := catalog.NewWatcher(cfg.CatalogDir, logger, func(reloaded []goap.Action) {
			p.Send(catalogReloadMsg(reloaded))
		})
		if werr == nil && watcher.Start(context.Background()) == nil {
			defer watcher.Stop()
		}
	}

	_, err = p.Run()
	return err
}
