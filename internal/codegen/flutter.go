// Package codegen turns a room's view tree into a Flutter project. The
// transform is a pure function of the document: same views in, same files
// out.
package codegen

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/uidraft/backend/internal/models"
)

// File is one generated project file.
type File struct {
	Path    string
	Content string
}

// GenerateProject emits the full Flutter project for the given views: one
// Dart file per view, a main.dart with the route table and prev/next
// navigation between views, and a pubspec.
func GenerateProject(views []models.View) ([]File, error) {
	if len(views) == 0 {
		return nil, fmt.Errorf("at least one view is required")
	}

	files := make([]File, 0, len(views)+2)
	imports := make([]string, 0, len(views))
	routes := make([]string, 0, len(views))

	for i, view := range views {
		fileName := view.Name + ".dart"
		className := capitalize(view.Name)

		imports = append(imports, fmt.Sprintf("import '%s';", fileName))
		routes = append(routes, fmt.Sprintf("'%s': (context) => %s(),", view.Name, className))

		var back, next string
		if i > 0 {
			back = views[i-1].Name
		}
		if i < len(views)-1 {
			next = views[i+1].Name
		}

		files = append(files, File{
			Path:    "lib/" + fileName,
			Content: buildViewCode(className, view, back, next),
		})
	}

	files = append(files, File{Path: "lib/main.dart", Content: buildMain(views[0].Name, imports, routes)})
	files = append(files, File{Path: "pubspec.yaml", Content: pubspec})
	return files, nil
}

func buildMain(initialRoute string, imports, routes []string) string {
	return fmt.Sprintf(`import 'package:flutter/material.dart';
import 'package:google_fonts/google_fonts.dart';

%s

void main() => runApp(MyApp());

class MyApp extends StatelessWidget {
  @override
  Widget build(BuildContext context) {
    return MaterialApp(
      title: 'Flutter UI Builder',
      debugShowCheckedModeBanner: false,
      theme: ThemeData(
        useMaterial3: true,
        colorScheme: ColorScheme.fromSeed(seedColor: Colors.indigo),
        textTheme: GoogleFonts.poppinsTextTheme(),
      ),
      initialRoute: '%s',
      routes: {
        %s
      },
    );
  }
}
`, strings.Join(imports, "\n"), initialRoute, strings.Join(routes, "\n        "))
}

func buildViewCode(className string, view models.View, back, next string) string {
	widgets := make([]string, 0, len(view.Components))
	for _, c := range view.Components {
		widgets = append(widgets, componentWidget(c))
	}

	backButton := "SizedBox(),"
	if back != "" {
		backButton = `TextButton(onPressed: () => Navigator.pop(context), child: Text("Back")),`
	}
	nextButton := "SizedBox()"
	if next != "" {
		nextButton = fmt.Sprintf(`TextButton(onPressed: () => Navigator.pushNamed(context, '%s'), child: Text("Next")),`, next)
	}

	return fmt.Sprintf(`import 'package:flutter/material.dart';

class %s extends StatelessWidget {
  @override
  Widget build(BuildContext context) {
    return Scaffold(
      appBar: AppBar(title: Text('%s')),
      body: SingleChildScrollView(
        child: Padding(
          padding: EdgeInsets.all(16),
          child: Column(
            crossAxisAlignment: CrossAxisAlignment.stretch,
            children: [
              %s
            ],
          ),
        ),
      ),
      bottomNavigationBar: BottomAppBar(
        child: Row(
          mainAxisAlignment: MainAxisAlignment.spaceBetween,
          children: [
            %s
            %s
          ],
        ),
      ),
    );
  }
}
`, className, view.Name, strings.Join(widgets, ",\n"), backButton, nextButton)
}

func componentWidget(c models.Component) string {
	p := properties(c.Properties)

	switch c.Type {
	case "text":
		return fmt.Sprintf(`Text(
        '%s',
        style: TextStyle(
          fontSize: %s,
          color: %s,
        ),
      )`, p.str("text", ""), p.num("fontSize", 16), p.color("color", "Colors.black"))

	case "button":
		return fmt.Sprintf(`ElevatedButton(
        onPressed: () {},
        style: ElevatedButton.styleFrom(
          backgroundColor: %s,
          foregroundColor: %s,
        ),
        child: Text('%s'),
      )`, p.color("backgroundColor", "Colors.indigo"), p.color("color", "Colors.white"), p.str("text", "Button"))

	case "checkbox":
		return fmt.Sprintf(`CheckboxListTile(
        value: %t,
        onChanged: (_) {},
        title: Text('%s'),
        controlAffinity: ListTileControlAffinity.leading,
      )`, p.boolean("checked"), p.str("text", ""))

	case "edittext":
		return fmt.Sprintf(`TextField(
        decoration: InputDecoration(
          hintText: '%s',
          filled: true,
          fillColor: %s,
          border: OutlineInputBorder(
            borderSide: BorderSide(color: %s),
          ),
        ),
        style: TextStyle(
          fontSize: %s,
          color: %s,
        ),
      )`, p.str("placeholder", ""), p.color("backgroundColor", "Colors.white"),
			p.color("borderColor", "Colors.grey"), p.num("fontSize", 14), p.color("textColor", "Colors.black"))

	case "listbox":
		items := p.items()
		encoded, _ := json.Marshal(items)
		return fmt.Sprintf(`DropdownButton<String>(
        value: '%s',
        items: %s.map((item) =>
          DropdownMenuItem(value: item, child: Text(item))).toList(),
        onChanged: (_) {},
      )`, items[0], string(encoded))

	case "table":
		return fmt.Sprintf(`Table(
        border: TableBorder.all(),
        children: List.generate(%s, (_) =>
          TableRow(
            children: List.generate(%s, (_) =>
              Padding(
                padding: EdgeInsets.all(4),
                child: Text("Cell", style: TextStyle(fontSize: %s)),
              )
            )
          )
        ),
      )`, p.num("rows", 2), p.num("columns", 2), p.num("fontSize", 12))

	case "image":
		return fmt.Sprintf(`Container(
        width: %s,
        height: %s,
        color: %s,
        child: Icon(Icons.image, size: 48),
      )`, dim(c.Width), dim(c.Height), p.color("backgroundColor", "Colors.grey"))

	case "ellipse":
		return fmt.Sprintf(`Container(
        width: %s,
        height: %s,
        decoration: BoxDecoration(
          shape: BoxShape.circle,
          color: %s,
          border: Border.all(
            color: %s,
            width: %s,
          ),
        ),
      )`, dim(c.Width), dim(c.Height), p.color("backgroundColor", "Colors.blue"),
			p.color("borderColor", "Colors.black"), p.num("borderWidth", 2))

	case "container":
		return fmt.Sprintf(`Container(
        width: %s,
        height: %s,
        padding: EdgeInsets.all(8),
        decoration: BoxDecoration(
          color: %s,
        ),
        child: Text("Container"),
      )`, dim(c.Width), dim(c.Height), p.color("backgroundColor", "Colors.transparent"))

	default:
		return fmt.Sprintf(`Container(child: Text("Type %s not implemented"))`, c.Type)
	}
}

// properties wraps the free-form property map with typed, defaulted access.
type properties map[string]interface{}

func (p properties) str(key, fallback string) string {
	if v, ok := p[key].(string); ok && v != "" {
		return escapeDart(v)
	}
	return fallback
}

func (p properties) num(key string, fallback float64) string {
	if v, ok := p[key].(float64); ok {
		return formatNum(v)
	}
	return formatNum(fallback)
}

func (p properties) boolean(key string) bool {
	v, _ := p[key].(bool)
	return v
}

// color renders a "#RRGGBB" property as a Dart Color literal, falling back
// to a named Flutter color.
func (p properties) color(key, fallback string) string {
	v, ok := p[key].(string)
	if !ok || v == "" || v == "transparent" {
		return fallback
	}
	return fmt.Sprintf("Color(0xFF%s)", strings.ToUpper(strings.TrimPrefix(v, "#")))
}

func (p properties) items() []string {
	raw, ok := p["items"].([]interface{})
	if !ok || len(raw) == 0 {
		return []string{"Item 1"}
	}
	items := make([]string, 0, len(raw))
	for _, item := range raw {
		if s, ok := item.(string); ok {
			items = append(items, s)
		}
	}
	if len(items) == 0 {
		return []string{"Item 1"}
	}
	return items
}

func dim(v float64) string {
	if v == 0 {
		v = 100
	}
	return formatNum(v)
}

func formatNum(v float64) string {
	if v == float64(int64(v)) {
		return fmt.Sprintf("%d", int64(v))
	}
	return fmt.Sprintf("%g", v)
}

func capitalize(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}

func escapeDart(s string) string {
	s = strings.ReplaceAll(s, `\`, `\\`)
	s = strings.ReplaceAll(s, `'`, `\'`)
	s = strings.ReplaceAll(s, "\n", `\n`)
	return s
}

const pubspec = `name: flutter_generated_app
description: Generated by uidraft
version: 1.0.0+1

environment:
  sdk: ">=3.0.0 <4.0.0"

dependencies:
  flutter:
    sdk: flutter
  google_fonts: ^6.2.1

flutter:
  uses-material-design: true
`
