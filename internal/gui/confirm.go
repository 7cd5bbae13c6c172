package gui

import (
	"context"
	"image"
	"sync"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/app"
	"fyne.io/fyne/v2/canvas"
	"fyne.io/fyne/v2/container"
	"fyne.io/fyne/v2/layout"
	"fyne.io/fyne/v2/widget"
	"github.com/rs/zerolog"

	"github.com/kikiluvv/lofiloop/internal/pipeline"
)

const appID = "io.github.kikiluvv.lofiloop"

// Confirmer asks the render question in a desktop window
type Confirmer struct {
	logger zerolog.Logger
}

// NewConfirmer creates a window-based confirmer
func NewConfirmer(logger zerolog.Logger) *Confirmer {
	return &Confirmer{logger: logger.With().Str("component", "gui").Logger()}
}

// Confirm implements pipeline.Confirmer. It must be called from the main
// goroutine and blocks until the window is answered or closed; closing the
// window counts as no.
func (c *Confirmer) Confirm(ctx context.Context, prompt pipeline.Prompt) (bool, error) {
	a := app.NewWithID(appID)
	w := a.NewWindow(prompt.Title)
	w.Resize(fyne.NewSize(560, 420))
	w.CenterOnScreen()

	var (
		once   sync.Once
		answer bool
	)
	finish := func(yes bool) {
		once.Do(func() {
			answer = yes
			c.logger.Debug().Bool("answer", yes).Msg("confirmation answered")
			a.Quit()
		})
	}

	var poster image.Image
	if prompt.PosterPath != "" {
		img, err := loadPoster(prompt.PosterPath)
		if err != nil {
			c.logger.Warn().Err(err).Msg("poster unavailable")
		}
		poster = img
	}

	w.SetContent(newPromptView(prompt, poster, finish))
	w.SetCloseIntercept(func() { finish(false) })

	stop := context.AfterFunc(ctx, func() {
		fyne.Do(func() { finish(false) })
	})
	defer stop()

	w.ShowAndRun()

	if err := ctx.Err(); err != nil {
		return false, err
	}
	return answer, nil
}

// newPromptView lays out the question, render details, an optional
// poster frame and the Yes/No buttons
func newPromptView(prompt pipeline.Prompt, poster image.Image, answer func(bool)) fyne.CanvasObject {
	title := widget.NewLabelWithStyle(prompt.Title, fyne.TextAlignLeading, fyne.TextStyle{Bold: true})
	message := widget.NewLabel(prompt.Message)

	body := container.NewVBox(title, message)
	for _, line := range prompt.Details {
		body.Add(widget.NewLabel(line))
	}

	if poster != nil {
		img := canvas.NewImageFromImage(poster)
		img.FillMode = canvas.ImageFillContain
		img.SetMinSize(fyne.NewSize(posterWidth, posterHeight))
		body.Add(img)
	}

	yes := widget.NewButton("Yes", func() { answer(true) })
	yes.Importance = widget.HighImportance
	no := widget.NewButton("No", func() { answer(false) })

	buttons := container.NewHBox(layout.NewSpacer(), no, yes)
	return container.NewBorder(nil, buttons, nil, nil, body)
}
