package dashboard

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
)

// Run polls a running gateway over HTTP and displays the dashboard until
// the user quits.
func Run(baseURL string) error {
	baseURL = strings.TrimRight(baseURL, "/")
	client := &http.Client{Timeout: 5 * time.Second}

	fetch := func() (refreshMsg, error) {
		var health struct {
			Uptime string `json:"uptime"`
		}
		if err := getJSON(client, baseURL+"/healthz", &health); err != nil {
			return refreshMsg{}, err
		}

		var list struct {
			Clients []string `json:"clients"`
		}
		if err := getJSON(client, baseURL+"/status/clients", &list); err != nil {
			return refreshMsg{}, err
		}

		clients := make([]ClientStatus, 0, len(list.Clients))
		for _, id := range list.Clients {
			var st struct {
				Status string `json:"status"`
			}
			if err := getJSON(client, baseURL+"/status/"+id, &st); err != nil {
				st.Status = "ERROR"
			}
			clients = append(clients, ClientStatus{TenantID: id, Status: st.Status})
		}
		return refreshMsg{clients: clients, uptime: health.Uptime}, nil
	}

	p := tea.NewProgram(NewModel(baseURL, fetch), tea.WithAltScreen())
	_, err := p.Run()
	return err
}

func getJSON(client *http.Client, url string, into any) error {
	resp, err := client.Get(url)
	if err != nil {
		return err
	}
	defer func() { _ = resp.Body.Close() }()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("GET %s: status %d", url, resp.StatusCode)
	}
	return json.NewDecoder(resp.Body).Decode(into)
}
