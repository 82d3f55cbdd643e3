package preview

// PlaceholderPage is booted whenever there is no usable generated source.
// It renders on its own and lists example prompts.
const PlaceholderPage = `import { Home } from 'lucide-react';
export default function Page({ data })
{
  return (
    <div className="px-4 py-8">
      <Home size={18} />
      <h1 className="text-lg mt-4">Welcome to Nextjs Page Generator</h1>
      <p className="text-sm text-gray-700">{data}</p>
      <div className="card-inner mt-4 px-12 py-5 shadow-xl">
        <h1 className="underline text-gray-700">Example prompts</h1>
        <p className="text-xs text-gray-500"> Copy and paste an example below </p>
        <ul className="mt-2 py-18">
          <li>Create a connect 4 game for two players. Show alert when game is won.</li>
          <li className="mt-2">Create a single page app with a title and get started button. Get started button should launch modal, a form that asks for a github repo. Use axios to fetch repo contents. On submit, it will fetch and display the repo file structure. Allow user to click and drill into file contents.</li>
          <li className="mt-2">Create a sodoku board game, make it take up the screen size. Allow user to edit empty cells. Validate rows/columns and add a hint button that shows an answer each time.</li>
        </ul>
      </div>
    </div>
  );
}

export function getServerSideProps() {
  return {
    props: { data: "Use the AI chat assistant to generate your Nextjs page using Tailwindcss" },
  }
}
`

const stylesheet = `/* purgecss start ignore */
@tailwind base;
/* purgecss end ignore */
@tailwind components;
@tailwind utilities;
`

const tailwindConfig = `/** @type {import('tailwindcss').Config} */
module.exports = {
  content: [
    "./app/**/*.{js,ts,jsx,tsx}",
    "./pages/**/*.{js,ts,jsx,tsx}",
    "./components/**/*.{js,ts,jsx,tsx}",
    "./src/**/*.{js,ts,jsx,tsx}"
  ],
  theme: {
    extend: {}
  },
  plugins: []
}
`

const postcssConfig = `module.exports = {
  plugins: {
    tailwindcss: {},
    autoprefixer: {},
  },
}
`

var defaultDependencies = map[string]string{
	"react":               "latest",
	"react-dom":           "latest",
	"tailwindcss":         "latest",
	"postcss-easy-import": "latest",
	"autoprefixer":        "latest",
	"postcss":             "latest",
	"axios":               "latest",
	"lucide-react":        "latest",
	"openai":              "latest",
	"ai":                  "latest",
	"react-modal":         "latest",
}

// DefaultDependencies returns the runtime libraries generated pages may import.
func DefaultDependencies() map[string]string {
	return copyMap(defaultDependencies)
}

func copyMap(in map[string]string) map[string]string {
	out := make(map[string]string, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}
