package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/dvcrn/studymate-cli/internal/api"
	"github.com/dvcrn/studymate-cli/internal/app"
)

func (c *cli) askCmd(ctx context.Context, args []string) error {
	fs, configPath := c.flags("ask")
	sessionID := fs.String("session", "", "continue an existing chat session")
	newChat := fs.Bool("new", false, "start a new chat session")
	return c.withApp(ctx, fs, configPath, args, func(a *app.App) error {
		question := strings.TrimSpace(strings.Join(fs.Args(), " "))
		if question == "" {
			return errors.New("ask: missing question")
		}

		streamed := false
		resp, err := a.Client.QueryStream(ctx, question, api.QueryOptions{SessionID: *sessionID, NewChat: *newChat}, func(delta string) {
			streamed = true
			fmt.Fprint(c.stdout, delta)
		})
		if err != nil {
			if streamed {
				fmt.Fprintln(c.stdout)
			}
			return err
		}
		if !streamed {
			fmt.Fprint(c.stdout, resp.Answer)
		}
		fmt.Fprintln(c.stdout)

		if resp.SessionID != "" {
			label := resp.SessionID
			if resp.SessionName != "" {
				label = fmt.Sprintf("%s (%s)", resp.SessionName, resp.SessionID)
			}
			if resp.IsNewSession {
				fmt.Fprintf(c.stderr, "Started chat %s\n", label)
			} else {
				fmt.Fprintf(c.stderr, "Chat %s\n", label)
			}
		}
		return nil
	})
}

func (c *cli) chatsCmd(ctx context.Context, args []string) error {
	return c.dispatch(ctx, "chats", args, map[string]command{
		"list": func(ctx context.Context, args []string) error {
			fs, configPath := c.flags("chats list")
			asJSON := fs.Bool("json", false, "output JSON")
			return c.withApp(ctx, fs, configPath, args, func(a *app.App) error {
				sessions, err := a.Client.ListChatSessions(ctx)
				if err != nil {
					return err
				}
				if *asJSON {
					return c.printJSON(sessions)
				}
				tw := tabwriter.NewWriter(c.stdout, 0, 4, 2, ' ', 0)
				fmt.Fprintln(tw, "ID\tNAME\tMESSAGES\tUPDATED")
				for _, s := range sessions {
					fmt.Fprintf(tw, "%s\t%s\t%d\t%s\n", s.ID, s.SessionName, s.MessageCount, s.UpdatedAt)
				}
				return tw.Flush()
			})
		},
		"messages": func(ctx context.Context, args []string) error {
			fs, configPath := c.flags("chats messages")
			limit := fs.Int("limit", 50, "maximum number of messages")
			return c.withApp(ctx, fs, configPath, args, func(a *app.App) error {
				id, err := requireArg(fs.Args(), "chat session id")
				if err != nil {
					return err
				}
				msgs, err := a.Client.ChatMessages(ctx, id, *limit)
				if err != nil {
					return err
				}
				for _, m := range msgs {
					role := m.Role
					if role == "" {
						role = "message"
					}
					fmt.Fprintf(c.stdout, "[%s] %s\n", role, m.Content)
				}
				return nil
			})
		},
		"rename": func(ctx context.Context, args []string) error {
			fs, configPath := c.flags("chats rename")
			return c.withApp(ctx, fs, configPath, args, func(a *app.App) error {
				if fs.NArg() < 2 {
					return errors.New("usage: studymate chats rename <id> <name>")
				}
				msg, err := a.Client.RenameChatSession(ctx, fs.Arg(0), strings.Join(fs.Args()[1:], " "))
				if err != nil {
					return err
				}
				fmt.Fprintln(c.stdout, msg.Message)
				return nil
			})
		},
		"delete": func(ctx context.Context, args []string) error {
			fs, configPath := c.flags("chats delete")
			return c.withApp(ctx, fs, configPath, args, func(a *app.App) error {
				id, err := requireArg(fs.Args(), "chat session id")
				if err != nil {
					return err
				}
				msg, err := a.Client.DeleteChatSession(ctx, id)
				if err != nil {
					return err
				}
				fmt.Fprintln(c.stdout, msg.Message)
				return nil
			})
		},
	})
}

func (c *cli) docsCmd(ctx context.Context, args []string) error {
	return c.dispatch(ctx, "docs", args, map[string]command{
		"list": func(ctx context.Context, args []string) error {
			fs, configPath := c.flags("docs list")
			asJSON := fs.Bool("json", false, "output JSON")
			return c.withApp(ctx, fs, configPath, args, func(a *app.App) error {
				docs, err := a.Client.ListDocuments(ctx)
				if err != nil {
					return err
				}
				if *asJSON {
					return c.printJSON(docs)
				}
				tw := tabwriter.NewWriter(c.stdout, 0, 4, 2, ' ', 0)
				fmt.Fprintln(tw, "ID\tNAME\tSTATUS\tSIZE")
				for _, d := range docs {
					fmt.Fprintf(tw, "%s\t%s\t%s\t%d\n", d.ID, d.OriginalFilename, d.EmbeddingStatus, d.FileSize)
				}
				return tw.Flush()
			})
		},
		"upload": func(ctx context.Context, args []string) error {
			fs, configPath := c.flags("docs upload")
			return c.withApp(ctx, fs, configPath, args, func(a *app.App) error {
				if fs.NArg() == 0 {
					return errors.New("usage: studymate docs upload <file>...")
				}
				out, err := a.Client.UploadPaths(ctx, fs.Args()...)
				if err != nil {
					return err
				}
				for _, u := range out {
					fmt.Fprintf(c.stdout, "%s -> %s: %s\n", u.Filename, u.DocumentID, u.Message)
				}
				return nil
			})
		},
		"delete": func(ctx context.Context, args []string) error {
			fs, configPath := c.flags("docs delete")
			return c.withApp(ctx, fs, configPath, args, func(a *app.App) error {
				id, err := requireArg(fs.Args(), "document id")
				if err != nil {
					return err
				}
				out, err := a.Client.DeleteDocument(ctx, id)
				if err != nil {
					return err
				}
				fmt.Fprintf(c.stdout, "%s (%d embeddings removed)\n", out.Message, out.EmbeddingsDeleted)
				return nil
			})
		},
		"download": func(ctx context.Context, args []string) error {
			fs, configPath := c.flags("docs download")
			output := fs.String("o", "", "output file (default: server filename)")
			return c.withApp(ctx, fs, configPath, args, func(a *app.App) error {
				id, err := requireArg(fs.Args(), "document id")
				if err != nil {
					return err
				}
				dl, err := a.Client.DownloadDocument(ctx, id)
				if err != nil {
					return err
				}
				return c.save(dl, *output, id)
			})
		},
	})
}

func (c *cli) notesCmd(ctx context.Context, args []string) error {
	return c.dispatch(ctx, "notes", args, map[string]command{
		"generate": func(ctx context.Context, args []string) error {
			fs, configPath := c.flags("notes generate")
			docs := fs.String("docs", "", "comma separated document ids")
			style := fs.String("style", "", "note style, e.g. summary or detailed")
			title := fs.String("title", "", "note title")
			prompt := fs.String("prompt", "", "extra instructions")
			wait := fs.Bool("wait", true, "wait until generation finishes")
			return c.withApp(ctx, fs, configPath, args, func(a *app.App) error {
				note, err := a.Client.GenerateNotes(ctx, api.GenerateNotesRequest{
					DocumentIDs: splitList(*docs), NoteStyle: *style, Title: *title, UserPrompt: *prompt,
				})
				if err != nil {
					return err
				}
				fmt.Fprintf(c.stderr, "Generating note %s...\n", note.ID)
				if !*wait {
					fmt.Fprintln(c.stdout, note.ID)
					return nil
				}
				note, err = a.Client.WaitForNote(ctx, note.ID, 2*time.Second)
				if err != nil {
					return err
				}
				fmt.Fprintln(c.stdout, note.NoteText)
				return nil
			})
		},
		"list": func(ctx context.Context, args []string) error {
			fs, configPath := c.flags("notes list")
			limit := fs.Int("limit", 50, "page size")
			offset := fs.Int("offset", 0, "page offset")
			asJSON := fs.Bool("json", false, "output JSON")
			return c.withApp(ctx, fs, configPath, args, func(a *app.App) error {
				notes, err := a.Client.ListNotes(ctx, *limit, *offset)
				if err != nil {
					return err
				}
				if *asJSON {
					return c.printJSON(notes)
				}
				tw := tabwriter.NewWriter(c.stdout, 0, 4, 2, ' ', 0)
				fmt.Fprintln(tw, "ID\tTITLE\tSTYLE\tSTATUS")
				for _, n := range notes {
					fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", n.ID, n.Title, n.NoteStyle, n.Status)
				}
				return tw.Flush()
			})
		},
		"show": func(ctx context.Context, args []string) error {
			fs, configPath := c.flags("notes show")
			return c.withApp(ctx, fs, configPath, args, func(a *app.App) error {
				id, err := requireArg(fs.Args(), "note id")
				if err != nil {
					return err
				}
				note, err := a.Client.GetNote(ctx, id)
				if err != nil {
					return err
				}
				if note.Status != api.NoteStatusCompleted {
					fmt.Fprintf(c.stderr, "Note is %s\n", note.Status)
				}
				fmt.Fprintln(c.stdout, note.NoteText)
				return nil
			})
		},
		"ask": func(ctx context.Context, args []string) error {
			fs, configPath := c.flags("notes ask")
			return c.withApp(ctx, fs, configPath, args, func(a *app.App) error {
				if fs.NArg() < 2 {
					return errors.New("usage: studymate notes ask <id> <question>")
				}
				ans, err := a.Client.AskNote(ctx, fs.Arg(0), strings.Join(fs.Args()[1:], " "))
				if err != nil {
					return err
				}
				fmt.Fprintln(c.stdout, ans.Answer)
				return nil
			})
		},
		"download": func(ctx context.Context, args []string) error {
			fs, configPath := c.flags("notes download")
			format := fs.String("format", "md", "md or pdf")
			output := fs.String("o", "", "output file")
			return c.withApp(ctx, fs, configPath, args, func(a *app.App) error {
				id, err := requireArg(fs.Args(), "note id")
				if err != nil {
					return err
				}
				var dl *api.Download
				ext := *format
				switch *format {
				case "md", "markdown":
					ext = "md"
					dl, err = a.Client.DownloadNoteMarkdown(ctx, id)
				case "pdf":
					dl, err = a.Client.DownloadNotePDF(ctx, id)
				default:
					return fmt.Errorf("unknown format %q, want md or pdf", *format)
				}
				if err != nil {
					return err
				}
				return c.save(dl, *output, id+"."+ext)
			})
		},
		"delete": func(ctx context.Context, args []string) error {
			fs, configPath := c.flags("notes delete")
			return c.withApp(ctx, fs, configPath, args, func(a *app.App) error {
				id, err := requireArg(fs.Args(), "note id")
				if err != nil {
					return err
				}
				if err := a.Client.DeleteNote(ctx, id); err != nil {
					return err
				}
				fmt.Fprintln(c.stdout, "Note deleted")
				return nil
			})
		},
	})
}

func (c *cli) flashcardsCmd(ctx context.Context, args []string) error {
	fs, configPath := c.flags("flashcards")
	topic := fs.String("topic", "", "topic to focus on")
	docs := fs.String("docs", "", "comma separated document ids")
	n := fs.Int("n", 10, "number of flashcards")
	asJSON := fs.Bool("json", false, "output JSON")
	return c.withApp(ctx, fs, configPath, args, func(a *app.App) error {
		cards, err := a.Client.GenerateFlashcardsStream(ctx, api.GenerateFlashcardsRequest{
			Topic: *topic, DocumentIDs: splitList(*docs), NumFlashcards: *n,
		}, c.progress)
		if err != nil {
			return err
		}
		if *asJSON {
			return c.printJSON(cards)
		}
		for i, card := range cards {
			fmt.Fprintf(c.stdout, "%d. Q: %s\n   A: %s\n", i+1, card.Question, card.Answer)
		}
		return nil
	})
}

func (c *cli) statsCmd(ctx context.Context, args []string) error {
	fs, configPath := c.flags("stats")
	admin := fs.Bool("admin", false, "show system-wide statistics (admins only)")
	return c.withApp(ctx, fs, configPath, args, func(a *app.App) error {
		if *admin {
			stats, err := a.Client.AdminStats(ctx)
			if err != nil {
				return err
			}
			return c.printJSON(stats)
		}
		stats, err := a.Client.UserStats(ctx)
		if err != nil {
			return err
		}
		fmt.Fprintf(c.stdout, "Documents:     %d (%d ready, %d processing, %d pending, %d failed)\n",
			stats.TotalDocuments,
			stats.DocumentsByStatus.Completed,
			stats.DocumentsByStatus.Processing,
			stats.DocumentsByStatus.Pending,
			stats.DocumentsByStatus.Failed)
		fmt.Fprintf(c.stdout, "Chat sessions: %d\n", stats.TotalChatSessions)
		return nil
	})
}

func (c *cli) healthCmd(ctx context.Context, args []string) error {
	fs, configPath := c.flags("health")
	return c.withApp(ctx, fs, configPath, args, func(a *app.App) error {
		h, err := a.Client.Health(ctx)
		if err != nil {
			return err
		}
		fmt.Fprintf(c.stdout, "%s: %s\n", h.Status, h.Message)
		return nil
	})
}

func (c *cli) progress(status, message string) {
	switch {
	case message != "":
		fmt.Fprintln(c.stderr, message)
	case status != "":
		fmt.Fprintf(c.stderr, "%s...\n", status)
	}
}

// save writes a download to output, or to the server's filename, or to
// fallback. "-" writes to stdout.
func (c *cli) save(dl *api.Download, output, fallback string) error {
	if output == "-" {
		_, err := c.stdout.Write(dl.Data)
		return err
	}
	if output == "" {
		output = dl.Filename
	}
	if output == "" {
		output = fallback
	}
	if err := os.WriteFile(output, dl.Data, 0o644); err != nil {
		return fmt.Errorf("write %s: %w", output, err)
	}
	fmt.Fprintf(c.stdout, "Saved %s (%d bytes)\n", output, len(dl.Data))
	return nil
}

func requireArg(args []string, name string) (string, error) {
	if len(args) == 0 || args[0] == "" {
		return "", fmt.Errorf("missing %s", name)
	}
	return args[0], nil
}

func atoiDefault(s string, def int) int {
	n, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil {
		return def
	}
	return n
}
